package camera

// MaxBuffers is the number of hardware buffer slots a camera exposes.
const MaxBuffers = 16

// LocateBuffer returns the lowest pending slot in mask. Bits above slot 15
// are ignored.
func LocateBuffer(mask int) (int, bool) {
	for i := 0; i < MaxBuffers; i++ {
		if mask&(1<<i) != 0 {
			return i, true
		}
	}
	return 0, false
}
