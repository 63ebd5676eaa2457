// -----------------------------------------------------------------------
// Crash Protection - Fatal error handling and crash file generation
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// CrashLogDir is the directory where crash files will be written
// Set during application initialization
var CrashLogDir = "./logs"

// InstallCrashHandler sets up process-level crash protection.
// This should be called at the very start of main() with a deferred recovery.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}

	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// WriteCrashFile writes a crash report to a file.
// This should be called from panic recovery handlers before the process exits.
// Returns the path to the crash file.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	timestamp := time.Now().Format("2006-01-02T15-04-05")
	crashPath := filepath.Join(CrashLogDir, fmt.Sprintf("crash-%s.log", timestamp))

	var report bytes.Buffer

	report.WriteString("=== VIGILO CRASH REPORT ===\n")
	report.WriteString(fmt.Sprintf("Time: %s\n", time.Now().Format(time.RFC3339)))
	report.WriteString(fmt.Sprintf("Version: %s\n", GetFullVersion()))
	report.WriteString("\n=== PANIC VALUE ===\n")
	report.WriteString(fmt.Sprintf("%v\n", panicVal))
	report.WriteString("\n=== STACK TRACE ===\n")
	report.WriteString(stackTrace)
	report.WriteString("\n=== ALL GOROUTINES ===\n")
	report.WriteString(GetAllGoroutineStacks())
	report.WriteString("\n=== SYSTEM INFO ===\n")
	report.WriteString(fmt.Sprintf("NumGoroutine: %d\n", runtime.NumGoroutine()))
	report.WriteString(fmt.Sprintf("GOOS: %s GOARCH: %s\n", runtime.GOOS, runtime.GOARCH))
	report.WriteString("=== END CRASH REPORT ===\n")

	file, err := os.OpenFile(crashPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create crash file: %v\n", err)
		fmt.Fprintf(os.Stderr, "%s", report.String())
		return ""
	}

	if _, err = file.Write(report.Bytes()); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n", err)
		fmt.Fprintf(os.Stderr, "%s", report.String())
	}

	file.Sync()
	file.Close()

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\n", crashPath)
	fmt.Fprintf(os.Stderr, "Panic: %v\n", panicVal)

	return crashPath
}

// GetAllGoroutineStacks returns stack traces for all goroutines.
func GetAllGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
		if len(buf) > 64*1024*1024 {
			return string(buf[:runtime.Stack(buf, true)])
		}
	}
}

// GetStackTrace returns the current goroutine's stack trace.
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// RecoverWithCrashFile is a helper for deferred panic recovery that writes a crash file.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}
