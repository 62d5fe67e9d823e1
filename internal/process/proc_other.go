//go:build !unix

// pattern: Imperative Shell

package process

import (
	"os"
	"os/exec"
)

// Without process groups only the direct child can be stopped.
func setProcessGroup(*exec.Cmd) {}

func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
