// Package daemon runs irqd, a long-lived process that keeps IR documents
// parsed between requests, and manages its lifecycle: PID and status files,
// start, stop and status.
package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDir is the default directory for daemon files
	DefaultDir = ".irq"
	// PIDFileName is the name of the PID file
	PIDFileName = "daemon.pid"
	// StatusFileName is the name of the status file
	StatusFileName = "status"
	// SocketFileName is the Unix socket created in the temp directory
	SocketFileName = "irq.sock"
	// DefaultTCPPort is the port used where Unix sockets are unavailable
	DefaultTCPPort = "9848"
	// ReadyTimeout is the timeout for waiting daemon to be ready
	ReadyTimeout = 10 * time.Second
	// ShutdownTimeout is the timeout for waiting daemon to shutdown
	ShutdownTimeout = 5 * time.Second

	dialTimeout = 5 * time.Second
)

// DaemonDir returns the path to the daemon directory
func DaemonDir() string {
	if dir := os.Getenv("IRQ_DAEMON_DIR"); dir != "" {
		return dir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultDir
	}
	return filepath.Join(cwd, DefaultDir)
}

// PIDFile returns the path to the PID file
func PIDFile() string {
	return filepath.Join(DaemonDir(), PIDFileName)
}

// StatusFile returns the path to the status file
func StatusFile() string {
	return filepath.Join(DaemonDir(), StatusFileName)
}

func ensureDaemonDir() error {
	if err := os.MkdirAll(DaemonDir(), 0755); err != nil {
		return fmt.Errorf("creating daemon directory: %w", err)
	}
	return nil
}

// WritePID writes the PID to the PID file
func WritePID(pid int) error {
	if err := ensureDaemonDir(); err != nil {
		return err
	}
	if err := os.WriteFile(PIDFile(), []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	return nil
}

// ReadPID reads the PID from the PID file
func ReadPID() (int, error) {
	data, err := os.ReadFile(PIDFile())
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing PID: %w", err)
	}
	return pid, nil
}

// RemovePID removes the PID file
func RemovePID() error {
	if err := os.Remove(PIDFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// PIDExists checks if the PID file exists.
func PIDExists() bool {
	_, err := os.Stat(PIDFile())
	return err == nil
}

// DaemonStatus is what the status file records and CheckStatus reports.
type DaemonStatus struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	Ready     bool      `json:"ready"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Error     string    `json:"error,omitempty"`
	Version   string    `json:"version,omitempty"`
	Documents int       `json:"documents,omitempty"`
}

// WriteStatus writes the status to the status file
func WriteStatus(status *DaemonStatus) error {
	if err := ensureDaemonDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}
	if err := os.WriteFile(StatusFile(), data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// ReadStatus reads the status from the status file
func ReadStatus() (*DaemonStatus, error) {
	data, err := os.ReadFile(StatusFile())
	if err != nil {
		return nil, fmt.Errorf("reading status file: %w", err)
	}
	var status DaemonStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}
	return &status, nil
}

// RemoveStatus removes the status file
func RemoveStatus() error {
	if err := os.Remove(StatusFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing status file: %w", err)
	}
	return nil
}

// IsProcessRunning checks if a process with the given PID is running
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	return processAlive(pid)
}

// GetSocketPath returns the Unix socket path, IRQ_SOCKET_PATH if set.
func GetSocketPath() string {
	if path := os.Getenv("IRQ_SOCKET_PATH"); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), SocketFileName)
}

// GetTCPPort returns the TCP port, IRQ_TCP_PORT if set.
func GetTCPPort() string {
	if port := os.Getenv("IRQ_TCP_PORT"); port != "" {
		return port
	}
	return DefaultTCPPort
}

// Endpoint returns the network and address the daemon listens on. An empty
// socketPath means GetSocketPath. Windows always uses TCP on localhost.
func Endpoint(socketPath string) (network, address string) {
	if runtime.GOOS == "windows" {
		return "tcp", "localhost:" + GetTCPPort()
	}
	if socketPath == "" {
		socketPath = GetSocketPath()
	}
	return "unix", socketPath
}

// Dial connects to the daemon and applies timeout as the deadline of the
// whole exchange.
func Dial(socketPath string, timeout time.Duration) (net.Conn, error) {
	network, address := Endpoint(socketPath)
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Call sends a single command over a fresh connection and decodes the
// reply. A reply carrying an error is returned as an error.
func Call(socketPath string, timeout time.Duration, cmd Command) (*Response, error) {
	conn, err := Dial(socketPath, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("sending command: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.Error != "" {
		return &resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

func pingDaemon() (*DaemonStatus, error) {
	resp, err := Call("", dialTimeout, Command{Type: CmdStatus, ID: "ping"})
	if err != nil {
		return nil, err
	}
	var st ServerStatus
	if err := json.Unmarshal(resp.Result, &st); err != nil {
		return nil, fmt.Errorf("invalid response format: %w", err)
	}
	return &DaemonStatus{
		Running:   true,
		Ready:     st.Status == "running",
		StartedAt: st.StartedAt,
		Version:   st.Version,
		Documents: st.Documents,
	}, nil
}

// CheckStatus checks the daemon status. A PID file left behind by a dead
// process is removed.
func CheckStatus() (*DaemonStatus, error) {
	if !PIDExists() {
		return &DaemonStatus{}, nil
	}

	pid, err := ReadPID()
	if err != nil {
		return &DaemonStatus{Error: fmt.Sprintf("failed to read PID: %v", err)}, nil
	}

	if !IsProcessRunning(pid) {
		RemovePID()
		RemoveStatus()
		return &DaemonStatus{}, nil
	}

	status, err := pingDaemon()
	if err != nil {
		return &DaemonStatus{
			Running: true,
			PID:     pid,
			Error:   fmt.Sprintf("daemon not responding: %v", err),
		}, nil
	}
	status.PID = pid
	return status, nil
}

// IsRunning checks if the daemon is currently running
func IsRunning() bool {
	status, err := CheckStatus()
	return err == nil && status.Running && status.Ready
}
