package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/mcdev12/musiguessr/go/internal/models"
)

const rule = "----------------------------------------"

// Render writes a plain-text modal. ModalNone writes nothing.
func Render(w io.Writer, m Modal) error {
	if m.Kind == ModalNone {
		return nil
	}

	var b strings.Builder
	b.WriteString(rule + "\n")
	b.WriteString("  " + m.Title + "\n")
	for _, line := range m.Lines {
		b.WriteString("  " + line + "\n")
	}
	if m.Error != "" {
		b.WriteString("  ! " + m.Error + "\n")
	}
	switch {
	case m.Busy:
		b.WriteString("  ...\n")
	case m.Action != "":
		b.WriteString(fmt.Sprintf("  [%s]\n", m.Action))
	}
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderHeader writes the one-line round status.
func RenderHeader(w io.Writer, hud HUD) error {
	line := fmt.Sprintf("Round %d/%d  Score %d", hud.Round, hud.TotalRounds, hud.Score)
	if hud.Notice != "" {
		line += "  (" + hud.Notice + ")"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// RenderResults writes a numbered search result list.
func RenderResults(w io.Writer, tracks []models.Track) error {
	if len(tracks) == 0 {
		_, err := fmt.Fprintln(w, "  no matches")
		return err
	}
	for i, track := range tracks {
		if _, err := fmt.Fprintf(w, "  %2d. %s\n", i+1, describeTrack(track)); err != nil {
			return err
		}
	}
	return nil
}
