package service

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/shlex"
)

// ProcessConfig describes how to launch one process.
type ProcessConfig struct {
	Command    string
	Port       int
	PortArg    string
	WorkingDir string
	Env        map[string]string
	// Category selects the allocator range when Port is 0.
	Category string
}

// CommandLine is a resolved argument vector and environment. No shell is
// involved in running it.
type CommandLine struct {
	Path string
	Args []string
	Env  []string
}

// packageManagers forward extra arguments to the script they run only after
// a "--" separator.
var packageManagers = map[string]bool{
	"npm":  true,
	"yarn": true,
	"pnpm": true,
}

var shellOperators = map[string]bool{
	"&&": true, "||": true, "|": true, ";": true, "&": true,
	">": true, ">>": true, "<": true,
}

// SplitCommand splits a command string into words using shell quoting
// rules. Shell operators are rejected since the result is executed
// directly.
func SplitCommand(command string) ([]string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	for _, word := range argv {
		if shellOperators[word] {
			return nil, fmt.Errorf("%w: shell operator %q is not supported", ErrInvalidCommand, word)
		}
	}
	return argv, nil
}

// AppendPortArgs appends "<portArg> <port>" to argv. Package manager
// wrappers get a "--" separator first unless argv already has one.
func AppendPortArgs(argv []string, portArg string, port int) []string {
	if portArg == "" {
		return argv
	}
	out := make([]string, 0, len(argv)+3)
	out = append(out, argv...)
	if packageManagers[filepath.Base(argv[0])] && !contains(argv[1:], "--") {
		out = append(out, "--")
	}
	return append(out, portArg, strconv.Itoa(port))
}

// BuildCommand resolves cfg into a CommandLine for the given port. The
// environment is base, then cfg.Env in key order, then PORT; later entries
// win.
func BuildCommand(cfg ProcessConfig, port int, base []string) (CommandLine, error) {
	argv, err := SplitCommand(cfg.Command)
	if err != nil {
		return CommandLine{}, err
	}
	argv = AppendPortArgs(argv, cfg.PortArg, port)

	env := make([]string, 0, len(base)+len(cfg.Env)+1)
	env = append(env, base...)
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+cfg.Env[k])
	}
	env = append(env, "PORT="+strconv.Itoa(port))

	return CommandLine{Path: argv[0], Args: argv[1:], Env: env}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
