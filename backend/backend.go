// Package backend provides delta generation engines.  The core
// reconciliation logic only ever sees the Backend interface, so it
// stays independently testable with fakes and the diff algorithm
// stays swappable.
package backend

import (
	"os/exec"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"
)

// Backend turns a (from, to) artifact pair into a delta file at
// deltaPath.
type Backend interface {
	Generate(fromPath, toPath, deltaPath string) error
}

// Command runs an external diff tool.  The command template is
// shell-tokenized once at construction; {from}, {to} and {delta}
// placeholders are substituted per invocation.
type Command struct {
	argv []string
}

// NewCommand parses a command template such as
//
//	xdelta3 -e -s {from} {to} {delta}
func NewCommand(template string) (c *Command, err error) {
	argv, err := shlex.Split(template)
	if err != nil {
		return nil, errors.Wrapf(err, "backend command %q", template)
	}
	if len(argv) == 0 {
		return nil, errors.Errorf("empty backend command")
	}
	return &Command{argv: argv}, nil
}

func (c *Command) Generate(fromPath, toPath, deltaPath string) (err error) {
	argv := make([]string, len(c.argv))
	for i, arg := range c.argv {
		arg = strings.ReplaceAll(arg, "{from}", fromPath)
		arg = strings.ReplaceAll(arg, "{to}", toPath)
		arg = strings.ReplaceAll(arg, "{delta}", deltaPath)
		argv[i] = arg
	}
	out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s: %s", argv[0], strings.TrimSpace(string(out)))
	}
	return nil
}
