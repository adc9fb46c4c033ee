package signaling

import (
	"bufio"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/tarm/serial"
)

// MotionHandler receives motion transitions decoded from an external source
type MotionHandler interface {
	HandleMotion(camera string, active bool) error
}

// SerialMotionSource reads PIR sensor transitions from a serial line, one
// event per newline-terminated record of the form "<camera>:<0|1>". Sensors
// wired to a microcontroller can trigger recordings for cameras without any
// detector feed.
type SerialMotionSource struct {
	port     *serial.Port
	portName string
	baud     int
	mutex    sync.Mutex
	callback func(camera string, active bool) error
}

// NewSerialMotionSource creates a motion source for the given port. Nothing
// is opened until Connect.
func NewSerialMotionSource(portName string, baud int, callback func(string, bool) error) *SerialMotionSource {
	return &SerialMotionSource{
		portName: portName,
		baud:     baud,
		callback: callback,
	}
}

// Connect opens the serial port and starts the read loop
func (s *SerialMotionSource) Connect() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.port != nil {
		return nil
	}

	config := &serial.Config{
		Name: s.portName,
		Baud: s.baud,
	}

	port, err := serial.OpenPort(config)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %v", err)
	}

	s.port = port
	go s.listen()

	log.Printf("📡 Serial motion source listening on %s at %d baud", s.portName, s.baud)
	return nil
}

// listen continuously reads records from the serial port
func (s *SerialMotionSource) listen() {
	reader := bufio.NewReader(s.port)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("⚠️ Serial motion source read error: %v", err)
			break
		}

		camera, active, err := parseMotionLine(line)
		if err != nil {
			log.Printf("⚠️ Ignoring malformed motion record %q: %v", strings.TrimSpace(line), err)
			continue
		}

		if s.callback != nil {
			if err := s.callback(camera, active); err != nil {
				log.Printf("⚠️ Motion handler rejected record for %s: %v", camera, err)
			}
		}
	}
}

// parseMotionLine decodes one "<camera>:<0|1>" record
func parseMotionLine(line string) (string, bool, error) {
	record := strings.TrimSpace(line)
	if record == "" {
		return "", false, fmt.Errorf("empty record")
	}

	sep := strings.LastIndex(record, ":")
	if sep <= 0 || sep == len(record)-1 {
		return "", false, fmt.Errorf("record is not camera:state")
	}

	camera := record[:sep]
	state, err := strconv.Atoi(record[sep+1:])
	if err != nil {
		return "", false, fmt.Errorf("invalid state: %v", err)
	}
	if state != 0 && state != 1 {
		return "", false, fmt.Errorf("state must be 0 or 1, got %d", state)
	}

	return camera, state == 1, nil
}

// HandleMotion lets the source double as a MotionHandler for direct feeds
func (s *SerialMotionSource) HandleMotion(camera string, active bool) error {
	if s.callback != nil {
		return s.callback(camera, active)
	}
	return nil
}

// Close closes the serial port
func (s *SerialMotionSource) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.port != nil {
		err := s.port.Close()
		s.port = nil
		return err
	}
	return nil
}

// FunctionMotionSource delivers motion transitions via direct function
// calls, for feeds that arrive in-process instead of over a serial line.
type FunctionMotionSource struct {
	callback func(camera string, active bool) error
}

// NewFunctionMotionSource creates a function-backed motion source
func NewFunctionMotionSource(callback func(string, bool) error) *FunctionMotionSource {
	return &FunctionMotionSource{
		callback: callback,
	}
}

// HandleMotion forwards the transition to the callback
func (f *FunctionMotionSource) HandleMotion(camera string, active bool) error {
	if f.callback != nil {
		return f.callback(camera, active)
	}
	return nil
}
