package camera

// ShutterCount resolves the repeat count for the shutter command from the
// bracket fields.
func ShutterCount(bracketMode, pictureCount int) int {
	if bracketMode == 0 || pictureCount < 1 {
		return 1
	}
	return pictureCount
}

// Fire sends command count times, reading and discarding each reply.
func Fire(ch *LineChannel, command string, count int) error {
	for i := 0; i < count; i++ {
		if _, err := ch.Roundtrip(command); err != nil {
			return err
		}
	}
	return nil
}
