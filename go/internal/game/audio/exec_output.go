package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ExecOutput plays a source by running an external player such as
// "mpv --no-video". The source URL is appended as the last argument. The
// process exiting on its own is reported as the end of the track.
type ExecOutput struct {
	command []string

	mu      sync.Mutex
	onEnded EndedFunc
	cmd     *exec.Cmd
	stopped map[*exec.Cmd]bool
}

func NewExecOutput(command string) (*ExecOutput, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty player command")
	}
	return &ExecOutput{
		command: fields,
		stopped: make(map[*exec.Cmd]bool),
	}, nil
}

// SetOnEnded registers the receiver of natural process exits.
func (o *ExecOutput) SetOnEnded(fn EndedFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnded = fn
}

func (o *ExecOutput) Play(ctx context.Context, source string, generation uint64) error {
	if err := o.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop running player")
	}

	args := append(append([]string{}, o.command[1:]...), source)
	cmd := exec.Command(o.command[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}

	o.mu.Lock()
	o.cmd = cmd
	o.mu.Unlock()

	go o.wait(cmd, generation)
	return nil
}

func (o *ExecOutput) wait(cmd *exec.Cmd, generation uint64) {
	err := cmd.Wait()

	o.mu.Lock()
	stopped := o.stopped[cmd]
	delete(o.stopped, cmd)
	if o.cmd == cmd {
		o.cmd = nil
	}
	onEnded := o.onEnded
	o.mu.Unlock()

	if stopped {
		return
	}
	if err != nil {
		log.Warn().Err(err).Uint64("generation", generation).Msg("player exited with error")
	}
	if onEnded != nil {
		onEnded(generation)
	}
}

func (o *ExecOutput) Stop() error {
	o.mu.Lock()
	cmd := o.cmd
	o.cmd = nil
	if cmd != nil {
		o.stopped[cmd] = true
	}
	o.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill player: %w", err)
	}
	return nil
}
