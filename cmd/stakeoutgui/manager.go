package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Manager starts the stake-out server when it is not already running and
// reports its progress to the shell page.
type Manager struct {
	logFunc    func(string)
	termFunc   func(string)
	appFunc    func(string)
	serverAddr string
	configPath string
	serverBin  string

	mu      sync.Mutex
	started bool // server launched by this window

	readyTimeout time.Duration
}

func NewManager(log, term, app func(string), serverAddr, configPath string) *Manager {
	bin := "./stakeout"
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	return &Manager{
		logFunc:      log,
		termFunc:     term,
		appFunc:      app,
		serverAddr:   serverAddr,
		configPath:   configPath,
		serverBin:    bin,
		readyTimeout: 30 * time.Second,
	}
}

func (m *Manager) log(msg string) {
	if m.logFunc != nil {
		m.logFunc(msg)
	}
}

func (m *Manager) term(name string) {
	if m.termFunc != nil {
		m.termFunc(name)
	}
}

// Stop asks a server started by this window to shut down.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return
	}

	fmt.Println("> Stake-out GUI closing: Sending shutdown signal to server...")
	url := fmt.Sprintf("http://%s/api/shutdown", m.resolveAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("> API shutdown failed: %v\n", err)
		return
	}
	resp.Body.Close()
	fmt.Println("> Shutdown command sent successfully.")
}

func (m *Manager) Start() {
	go func() {
		// 1. First run: let the server write its default config
		if !m.checkPrerequisites() {
			m.term("init-config")
			m.log("> No config found. Generating defaults...")
			if err := m.runWithOutput(exec.Command(m.serverBin, "-init-config", "-config", m.configPath)); err != nil {
				m.log(fmt.Sprintf("> Config generation failed: %v", err))
				return
			}
			m.log("> Config written to " + m.configPath)
		}

		// 2. Check Server
		m.term("stakeout")
		if !m.isServerReady() {
			m.log("> Server not running. Starting stakeout...")
			go m.runServer()
		} else {
			m.log("> Server already active.")
			m.term("server.log")
			go m.tailServerLog("logs/server.log")
		}

		// 3. Wait for Readiness
		m.log("> Waiting for server...")
		if m.waitReady(m.readyTimeout, time.Second) {
			m.log("> Server ready!")
			if m.appFunc != nil {
				m.appFunc("http://" + m.resolveAddr())
			}
			return
		}
		m.log("> Error: Server timed out.")
	}()
}

func (m *Manager) waitReady(timeout, every time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if m.isServerReady() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(every)
	}
}

func (m *Manager) checkPrerequisites() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

func (m *Manager) runServer() {
	cmd := exec.Command(m.serverBin, "-config", m.configPath)
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	if err := m.runWithOutput(cmd); err != nil {
		m.log(fmt.Sprintf("Server exited with error: %v", err))
	}
}

func (m *Manager) runWithOutput(cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); m.streamReader(stdout) }()
	go func() { defer wg.Done(); m.streamReader(stderr) }()
	wg.Wait()

	return cmd.Wait()
}

func (m *Manager) tailServerLog(path string) {
	file, err := os.Open(path)
	if err != nil {
		m.log(fmt.Sprintf("Could not open log file: %v", err))
		return
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		m.log(fmt.Sprintf("Could not seek log file: %v", err))
		return
	}
	reader := bufio.NewReader(file)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				time.Sleep(500 * time.Millisecond)
				continue
			}
			break
		}
		m.log(strings.TrimSpace(line))
	}
}

func (m *Manager) streamReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.log(scanner.Text())
	}
}

// resolveAddr turns the listen address into one a client can dial.
func (m *Manager) resolveAddr() string {
	addr := m.serverAddr
	switch {
	case strings.HasPrefix(addr, ":"):
		return "127.0.0.1" + addr
	case strings.HasPrefix(addr, "localhost:"):
		return strings.Replace(addr, "localhost:", "127.0.0.1:", 1)
	case strings.HasPrefix(addr, "0.0.0.0:"):
		return strings.Replace(addr, "0.0.0.0:", "127.0.0.1:", 1)
	}
	return addr
}

func (m *Manager) isServerReady() bool {
	client := http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/api/version", m.resolveAddr()))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
