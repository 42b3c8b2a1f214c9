package cmd

import (
	"bytes"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pktremote/config"
)

// daemon is a loopback pktriggercord stand-in. It serves connections one at a
// time and answers every read as one command.
type daemon struct {
	ln      net.Listener
	bufmask string
	buffers map[string][]byte
	refuse  bool

	mu       sync.Mutex
	commands []string
}

func newDaemon(t *testing.T, bufmask string) *daemon {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	d := &daemon{ln: ln, bufmask: bufmask, buffers: map[string][]byte{}}
	go d.serve()
	t.Cleanup(func() { ln.Close() })
	return d
}

func (d *daemon) port() string {
	return strconv.Itoa(d.ln.Addr().(*net.TCPAddr).Port)
}

func (d *daemon) serve() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		d.handle(conn)
	}
}

func (d *daemon) handle(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 2000)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			command := string(buf[:n])
			d.mu.Lock()
			d.commands = append(d.commands, command)
			d.mu.Unlock()

			line, payload := d.answer(command)
			if _, err := io.WriteString(conn, line+"\n"); err != nil {
				return
			}
			if _, err := conn.Write(payload); err != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (d *daemon) answer(command string) (string, []byte) {
	status := map[string]string{
		"get_camera_name":                "PENTAX K-5",
		"get_lens_name":                  "smc PENTAX-DA 35mm F2.4 AL",
		"get_current_shutter_speed":      "1/125",
		"get_current_aperture":           "5.6",
		"get_current_iso":                "200",
		"get_auto_bracket_mode":          "1",
		"get_auto_bracket_picture_count": "3",
		"get_bufmask":                    d.bufmask,
	}
	if value, ok := status[command]; ok {
		return "0 " + value, nil
	}
	if data, ok := d.buffers[command]; ok {
		return "0 " + strconv.Itoa(len(data)), data
	}
	switch {
	case command == "connect" && d.refuse:
		return "1", nil
	case command == "connect", command == "update_status", command == "focus", command == "shutter":
		return "0", nil
	case strings.HasPrefix(command, "delete_buffer"):
		return "0", nil
	}
	return "1 Invalid servermode command", nil
}

func (d *daemon) count(command string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.commands {
		if c == command {
			n++
		}
	}
	return n
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Host:           "127.0.0.1",
		Port:           1,
		SaveDir:        t.TempDir(),
		ConnectTimeout: 2 * time.Second,
		PollInterval:   200 * time.Millisecond,
		Region:         "us-east-1",
	}
}

// resetFlags restores every flag of the command tree to its default so that
// one test's arguments do not leak into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns what it printed on
// stdout.
func execute(t *testing.T, c *config.Config, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w

	output := make(chan string)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		output <- buf.String()
	}()

	err = Execute(c)

	w.Close()
	os.Stdout = oldStdout
	return <-output, err
}
