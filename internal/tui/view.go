package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/GuLp-St/Attendance-Studio/internal/ir"
)

// View implements tea.Model.
func (m Model) View() string {
	var sections []string
	sections = append(sections, m.header())

	body := m.layers()
	if m.log != nil {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.sidebar())
	}
	sections = append(sections, body)

	if m.status != "" {
		sections = append(sections, mutedStyle.Render(m.status))
	}
	if n := len(m.engine.Errors()); n > 0 {
		sections = append(sections, warnStyle.Render(fmt.Sprintf("%d absorbed error(s)", n)))
	}
	sections = append(sections, m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) header() string {
	s := m.snap
	title := titleStyle.Render("Attendance Studio")
	info := mutedStyle.Render(fmt.Sprintf("  %s · depth %d · seq %d", s.State, s.Depth, s.Seq))
	gate := ""
	if s.GateCount > 0 {
		gate = mutedStyle.Render("  " + strings.Repeat("•", s.GateCount))
	}
	return title + info + gate
}

// layers renders every visible level, shallowest first, with the choices
// of the topmost level inside it.
func (m Model) layers() string {
	s := m.snap
	if len(s.Tokens) == 0 && s.Pending == nil {
		return baseStyle.Render("Signed out.\n\n" + m.choiceList())
	}

	schema := m.engine.Schema()
	var boxes []string
	for i, tok := range s.Tokens {
		lvl, ok := schema.Level(tok)
		if !ok {
			continue
		}
		content := titleStyle.Render(m.levelTitle(lvl))
		if i == len(s.Tokens)-1 && s.Pending == nil {
			if list := m.choiceList(); list != "" {
				content += "\n\n" + list
			}
		}
		boxes = append(boxes, styleFor(lvl).Render(content))
	}

	if p := s.Pending; p != nil {
		dialog := fmt.Sprintf("%s\n\n%s", p.Message, mutedStyle.Render("y: yes   n: no   esc: cancel"))
		boxes = append(boxes, confirmStyle.Render(dialog))
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...)
}

func (m Model) levelTitle(lvl ir.LevelSpec) string {
	for _, f := range lvl.Flags {
		if m.snap.Has(f) {
			return humanize(string(f))
		}
	}
	if lvl.State == ir.StateBase {
		return "Dashboard"
	}
	return lvl.Name
}

func styleFor(lvl ir.LevelSpec) lipgloss.Style {
	switch lvl.State {
	case ir.StateAdmin, ir.StateAdminTag:
		return adminStyle
	case ir.StateOverlay:
		return overlayStyle
	case ir.StateDetail:
		return modalStyle
	default:
		return baseStyle
	}
}

func (m Model) choiceList() string {
	choices := m.choices()
	if len(choices) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range choices {
		if i > 8 {
			break
		}
		label := string(c.flag)
		if label == "" {
			label = c.level.Name
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d  %s", i+1, humanize(label))
	}
	return mutedStyle.Render(b.String())
}

func (m Model) sidebar() string {
	var b strings.Builder
	b.WriteString("history\n")
	for _, e := range m.log.Entries() {
		marker := "  "
		if e.Index == m.snap.Index {
			marker = "> "
		}
		tok := string(e.Token)
		if tok == "" {
			tok = "(root)"
		}
		fmt.Fprintf(&b, "\n%s%d %s", marker, e.Index, tok)
	}
	return sidebarStyle.Render(b.String())
}
