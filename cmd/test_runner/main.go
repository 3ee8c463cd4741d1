package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	verbose    = flag.Bool("v", false, "verbose output")
	short      = flag.Bool("short", false, "run only short tests")
	race       = flag.Bool("race", true, "enable the race detector (the fetch pipeline is concurrent)")
	timeout    = flag.Duration("timeout", 5*time.Minute, "test timeout")
	testRegexp = flag.String("run", "", "run only tests matching the regular expression")
	pkgs       = flag.String("pkg", "./...", "packages to test")
)

func main() {
	flag.Parse()

	args := []string{"test"}
	if *verbose {
		args = append(args, "-v")
	}
	if *short {
		args = append(args, "-short")
	}
	if *race {
		args = append(args, "-race")
	}
	args = append(args, fmt.Sprintf("-timeout=%s", timeout.String()))
	if *testRegexp != "" {
		args = append(args, fmt.Sprintf("-run=%s", *testRegexp))
	}
	args = append(args, strings.Fields(*pkgs)...)

	scratch, err := os.MkdirTemp("", "kline-bot-tests-*")
	if err != nil {
		fmt.Printf("Error creating scratch dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(scratch)

	cmd := exec.Command("go", args...)

	// Keep test runs from alerting or touching the real database.
	env := os.Environ()
	env = append(env,
		"ENVIRONMENT=development",
		"TELEGRAM_BOT_TOKEN=",
		"DB_PATH="+filepath.Join(scratch, "test.db"),
	)
	cmd.Env = env

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Running tests with args: %s\n", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		code := 1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			fmt.Printf("Error running tests: %v\n", err)
		}
		os.RemoveAll(scratch)
		os.Exit(code)
	}
}
