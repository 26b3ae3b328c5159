// internal/shell/commands.go
package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/guard"
	"github.com/xkilldash9x/scrapedeck/internal/orchestrator"
	"github.com/xkilldash9x/scrapedeck/internal/validation"
)

// Line is one line of command output.
type Line struct {
	Level schemas.LogLevel
	Text  string
}

// Result is the output of one command.
type Result struct {
	Lines []Line
	// Pending is the action waiting on a save / discard / cancel answer.
	Pending    guard.Action
	HasPending bool
}

func (r *Result) info(format string, args ...interface{}) {
	r.Lines = append(r.Lines, Line{Level: schemas.LevelInfo, Text: fmt.Sprintf(format, args...)})
}

func (r *Result) success(format string, args ...interface{}) {
	r.Lines = append(r.Lines, Line{Level: schemas.LevelSuccess, Text: fmt.Sprintf(format, args...)})
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Lines = append(r.Lines, Line{Level: schemas.LevelWarning, Text: fmt.Sprintf(format, args...)})
}

func (r *Result) fail(err error) {
	r.Lines = append(r.Lines, Line{Level: schemas.LevelError, Text: err.Error()})
}

const helpText = `Profile
  url <address>                 set the target page
  file [name]                   set or clear the output file name
  format json|csv|xlsx          set the export format
  debug on|off                  visible browser and verbose logs
  session <id>|none             use a stored browser session
Extractors (n is the position shown by "show")
  add <field> <selector>        append a text extractor
  field <n> <name>              rename
  selector <n> <selector>       change the selector
  mode <n> <mode> [attribute]   text, attribute, child-link-url, child-link-text
  attr <n> <name>               attribute to read in attribute mode
  rm <n>                        remove
  mv <from> <to>                reorder
Actions
  show | validate | run | sessions
  save [path] | load [path] | reset | quit`

// Commander executes shell command lines against the orchestrator.
type Commander struct {
	orc *orchestrator.Orchestrator
}

// NewCommander creates a Commander.
func NewCommander(orc *orchestrator.Orchestrator) *Commander {
	return &Commander{orc: orc}
}

// Exec runs one command line.
func (c *Commander) Exec(ctx context.Context, line string) Result {
	var res Result
	verb, rest := splitVerb(line)
	if verb == "" {
		return c.withPending(res)
	}

	if err := c.dispatch(ctx, verb, rest, &res); err != nil {
		res.fail(err)
	}
	return c.withPending(res)
}

// Decide answers the pending unsaved-changes prompt.
func (c *Commander) Decide(ctx context.Context, d guard.Decision) Result {
	var res Result
	if err := c.orc.Resolve(ctx, d); err != nil {
		res.fail(err)
	} else if d == guard.DecisionCancel {
		res.info("Canceled")
	}
	return c.withPending(res)
}

func (c *Commander) withPending(res Result) Result {
	res.Pending, res.HasPending = c.orc.Pending()
	return res
}

func (c *Commander) dispatch(ctx context.Context, verb, rest string, res *Result) error {
	store := c.orc.Profile()
	args := strings.Fields(rest)

	switch verb {
	case "help", "?":
		res.info("%s", helpText)

	case "show":
		c.show(res)

	case "url":
		if rest == "" {
			return errors.New("usage: url <address>")
		}
		store.SetTargetURL(rest)

	case "file":
		store.SetOutputFileName(rest)

	case "format":
		f, ok := schemas.ParseExportFormat(rest)
		if !ok || rest == "" {
			return fmt.Errorf("unknown export format %q", rest)
		}
		store.SetExportFormat(f)

	case "debug":
		switch rest {
		case "on", "true":
			store.SetDebug(true)
		case "off", "false":
			store.SetDebug(false)
		default:
			return errors.New("usage: debug on|off")
		}

	case "session":
		return c.setSession(rest, res)

	case "add":
		if len(args) < 2 {
			return errors.New("usage: add <field> <selector>")
		}
		_, selector := splitVerb(rest)
		e := store.AddExtractor(args[0], selector)
		res.info("Added extractor %d (%s)", len(store.Current().Extractors), e.FieldName)

	case "field", "selector", "attr":
		id, value, err := c.target(rest)
		if err != nil {
			return err
		}
		return c.editField(id, verb, value)

	case "mode":
		return c.setMode(rest)

	case "rm":
		id, _, err := c.target(rest)
		if err != nil {
			return err
		}
		return c.orc.RemoveExtractor(id)

	case "mv":
		if len(args) != 2 {
			return errors.New("usage: mv <from> <to>")
		}
		from, err1 := strconv.Atoi(args[0])
		to, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			return errors.New("usage: mv <from> <to>")
		}
		return store.MoveExtractor(from-1, to-1)

	case "validate":
		set := c.orc.Validate()
		if set.OK() {
			res.success("All extractors are valid")
			return nil
		}
		c.show(res)

	case "run":
		req, err := c.orc.StartRun(ctx)
		if err != nil {
			var verr *validation.ValidationError
			if errors.As(err, &verr) {
				c.show(res)
			}
			return err
		}
		res.info("Run %s started, writing %s", shortID(req.RunID), req.FileName)

	case "save":
		out, err := c.orc.Save(ctx, rest)
		if err != nil {
			return err
		}
		if out.Canceled {
			res.warn("No file to save to; use save <path>")
			return nil
		}
		res.success("Saved %s", out.Path)

	case "load":
		loaded, outcome, err := c.orc.RequestLoad(ctx, rest)
		if err != nil {
			return err
		}
		if outcome != guard.OutcomeProceeded {
			return nil
		}
		if loaded.Canceled || loaded.Path == "" {
			res.warn("No file to load; use load <path>")
			return nil
		}
		res.success("Loaded %s", loaded.Path)

	case "reset":
		outcome, err := c.orc.RequestReset(ctx)
		if err != nil {
			return err
		}
		if outcome == guard.OutcomeProceeded {
			res.success("Profile reset")
		}

	case "sessions":
		if err := c.orc.RefreshSessions(ctx); err != nil {
			return err
		}
		list := c.orc.Sessions()
		if len(list) == 0 {
			res.info("No stored sessions")
		}
		for _, s := range list {
			res.info("%-16s %-24s %s (%d cookies)", s.ID, s.Name, s.Domain, len(s.Cookies))
		}

	case "quit", "exit":
		if _, err := c.orc.RequestClose(ctx); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown command %q; type help", verb)
	}
	return nil
}

func (c *Commander) setSession(rest string, res *Result) error {
	store := c.orc.Profile()
	if rest == "" || rest == "none" {
		store.SetSessionID("")
		return nil
	}
	for _, s := range c.orc.Sessions() {
		if s.ID == rest {
			store.SetSessionID(rest)
			return nil
		}
	}
	store.SetSessionID(rest)
	res.warn("Session %q is not in the session list", rest)
	return nil
}

func (c *Commander) editField(id, verb, value string) error {
	switch verb {
	case "field":
		return c.orc.EditExtractor(id, validation.FieldFieldName, func(e *schemas.Extractor) { e.FieldName = value })
	case "selector":
		return c.orc.EditExtractor(id, validation.FieldSelector, func(e *schemas.Extractor) { e.Selector = value })
	default:
		return c.orc.EditExtractor(id, validation.FieldAttributeName, func(e *schemas.Extractor) { e.AttributeName = value })
	}
}

func (c *Commander) setMode(rest string) error {
	id, value, err := c.target(rest)
	if err != nil {
		return err
	}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return errors.New("usage: mode <n> <mode> [attribute]")
	}
	mode := schemas.ExtractMode(fields[0])
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", fields[0])
	}
	attr := ""
	if len(fields) > 1 {
		attr = fields[1]
	}
	return c.orc.EditExtractor(id, validation.FieldAttributeName, func(e *schemas.Extractor) {
		e.Mode = mode
		if attr != "" {
			e.AttributeName = attr
		}
	})
}

// target resolves the leading 1-based position in rest to an extractor id.
func (c *Commander) target(rest string) (id, value string, err error) {
	pos, value := splitVerb(rest)
	n, err := strconv.Atoi(pos)
	if err != nil {
		return "", "", fmt.Errorf("expected an extractor number, got %q", pos)
	}
	extractors := c.orc.Profile().Current().Extractors
	if n < 1 || n > len(extractors) {
		return "", "", fmt.Errorf("no extractor %d (have %d)", n, len(extractors))
	}
	return extractors[n-1].ID, value, nil
}

func (c *Commander) show(res *Result) {
	p := c.orc.Profile().Current()
	errs := c.orc.FieldErrors()

	res.info("url      %s", orDash(p.TargetURL))
	res.info("file     %s", orDash(p.OutputFileName))
	res.info("format   %s", p.ExportFormat)
	res.info("debug    %t", p.Debug)
	res.info("session  %s", orDash(p.SessionID))
	if path := c.orc.Path(); path != "" {
		res.info("saved as %s", path)
	}
	if len(p.Extractors) == 0 {
		res.info("no extractors; add <field> <selector>")
	}
	for i, e := range p.Extractors {
		text := fmt.Sprintf("%2d. %-16s %-32s %s", i+1, orDash(e.FieldName), orDash(e.Selector), e.Mode)
		if e.Mode == schemas.ModeAttribute {
			text += " [" + orDash(e.AttributeName) + "]"
		}
		fe := errs.For(e.ID)
		if !fe.Any() {
			res.info("%s", text)
			continue
		}
		res.Lines = append(res.Lines, Line{Level: schemas.LevelError, Text: text + "  <- " + describe(fe)})
	}
}

func describe(fe validation.FieldErrors) string {
	var missing []string
	if fe.FieldNameMissing {
		missing = append(missing, "field name")
	}
	if fe.SelectorMissing {
		missing = append(missing, "selector")
	}
	if fe.AttributeNameMissing {
		missing = append(missing, "attribute")
	}
	return "missing " + strings.Join(missing, ", ")
}

func splitVerb(line string) (string, string) {
	line = strings.TrimSpace(line)
	idx := strings.IndexFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
