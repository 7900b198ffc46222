package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	webview "github.com/webview/webview_go"

	"stakeout/pkg/config"
)

// instanceAddr is held for the lifetime of the window so a second launch exits.
const instanceAddr = "127.0.0.1:1922"

var configPath = flag.String("config", "configs/stakeout.yaml", "Path to the server config file")

func main() {
	flag.Parse()

	lock, err := net.Listen("tcp", instanceAddr)
	if err != nil {
		// Already running.
		return
	}
	defer lock.Close()

	// Webview requires main thread
	runtime.LockOSThread()

	// Run from the executable directory so configs/, data/ and the server binary resolve
	exe, _ := os.Executable()
	if err := os.Chdir(filepath.Dir(exe)); err != nil {
		panic(err)
	}

	serverAddr := config.DefaultConfig().Server.Address
	if _, err := os.Stat(*configPath); err == nil {
		if cfg, err := config.Load(*configPath); err == nil {
			serverAddr = cfg.Server.Address
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config, using %s: %v\n", serverAddr, err)
		}
	}

	w := webview.New(true)
	defer w.Destroy()

	w.Init(`
		window.addEventListener('contextmenu', function(e) {
			e.preventDefault();
		}, true);
	`)

	w.SetTitle("Stake-out")
	w.SetSize(800, 1000, webview.HintNone)

	logProxy := func(msg string) {
		w.Dispatch(func() {
			w.Eval("window.addLogLine(" + escapeJS(msg) + ")")
		})
	}

	termProxy := func(name string) {
		w.Dispatch(func() {
			w.Eval("window.setTerminalTitle(" + escapeJS(name) + ")")
		})
	}

	appProxy := func(url string) {
		w.Dispatch(func() {
			w.Eval("window.enableApp(" + escapeJS(url) + ")")
		})
	}

	mgr := NewManager(logProxy, termProxy, appProxy, serverAddr, *configPath)
	defer mgr.Stop()

	// Serve the shell page locally so the embedded frames share an http origin
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer ln.Close()

	go func() {
		_ = http.Serve(ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(htmlContent))
		}))
	}()

	w.Navigate("http://" + ln.Addr().String())

	mgr.Start()

	w.Run()
}

func escapeJS(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
