package memhost

import (
	"path/filepath"
	"strings"

	"github.com/binjactl/uiengine/internal/host"
)

// Architectures offered by the options dialog platform picker.
var Architectures = []string{
	"x86", "x86_64", "x86_16", "armv7", "thumb2", "aarch64",
	"mips32", "mipsel32", "mips64", "ppc", "ppc64", "riscv64",
}

// Desktop is a ready-made host: one main window with a status bar and a
// "Close Tab" action, one UI context, and save prompts for modified views.
type Desktop struct {
	App      *App
	Views    *Accessor
	Main     *Window
	Context  *Context
	CloseTab *Action

	// OptionsDialog makes OpenFilename show an "Open with Options" dialog
	// instead of loading straight away.
	OptionsDialog bool
	// DatabaseExtension is appended by the Save prompt button.
	DatabaseExtension string
}

// NewDesktop builds a desktop whose main window is titled title.
func NewDesktop(title string) *Desktop {
	d := &Desktop{
		App:               NewApp(),
		Views:             NewAccessor(),
		Main:              NewMainWindow(title),
		Context:           NewContext(),
		DatabaseExtension: ".bndb",
	}
	d.Views.DefaultArch = "x86_64"
	d.Views.AddContext(d.Context)
	d.App.AddWindow(d.Main)
	d.App.SetActive(d.Main)

	d.Main.Status().Add(NewLabel("Ready", 10, 700))

	d.CloseTab = NewAction("Close Tab", d.requestCloseTab)
	d.Main.AddAction(NewAction("Open...", nil))
	d.Main.AddAction(d.CloseTab)
	d.Main.OnClose = d.confirmCloseWindow

	d.Context.OnOpen = func(c *Context, path string) (bool, error) {
		if d.OptionsDialog {
			d.App.AddWindow(d.NewOptionsDialog(path))
			return true, nil
		}
		_, err := d.load(path, "")
		return err == nil, err
	}
	return d
}

// Host wraps the desktop in a host.Host using s as scheduler.
func (d *Desktop) Host(s host.Scheduler) *host.Host {
	return &host.Host{App: d.App, Views: d.Views, Scheduler: s}
}

// Open loads path into a new tab without any dialog and returns its view.
func (d *Desktop) Open(path string) (*View, error) {
	return d.load(path, "")
}

func (d *Desktop) load(path, arch string) (*View, error) {
	v, err := d.Views.Load(path)
	if err != nil {
		return nil, err
	}
	if mv, ok := v.(*View); ok && arch != "" {
		_ = mv.SetArchitecture(arch)
	}
	d.Context.AddTab(v)
	d.Views.SetCurrentView(v)
	if mv, ok := v.(*View); ok {
		return mv, nil
	}
	return nil, nil
}

// NewOptionsDialog builds the "Open with Options" dialog for path. Open loads
// the file with the selected platform and hides the dialog.
func (d *Desktop) NewOptionsDialog(path string) *Window {
	w := NewWindow("OptionsDialog", "Open with Options - "+filepath.Base(path))
	viewType := NewComboBox("Raw", "Mapped", "ELF")
	_ = viewType.SetCurrentIndex(2)
	platform := NewComboBox(Architectures...)
	analysis := NewComboBox("analysis.mode.basic", "analysis.mode.intermediate", "analysis.mode.full")

	done := false
	finish := func() {
		if done {
			return
		}
		done = true
		w.Dismiss()
		_, _ = d.load(path, platform.CurrentText())
	}
	w.Add(viewType, platform, analysis,
		NewButton("Cancel", w.Dismiss),
		NewButton("Open", finish),
	)
	w.OnAccept = finish
	return w
}

// NewSavePrompt builds the "Save changes?" message box for v. The Save button
// writes the companion database before closing.
func (d *Desktop) NewSavePrompt(v host.View, onClosed func()) *Window {
	title := "Save changes to " + filepath.Base(v.Filename()) + "?"
	return NewMessageBox(title, []string{"Save", "Don't Save", "Cancel"}, func(label string) {
		switch label {
		case "Save":
			target := v.Filename()
			if !strings.HasSuffix(strings.ToLower(target), d.DatabaseExtension) {
				target += d.DatabaseExtension
			}
			if ok, err := v.CreateDatabase(target); err != nil || !ok {
				return
			}
			_ = v.SetModified(false)
		case "Cancel":
			return
		}
		if onClosed != nil {
			onClosed()
		}
	})
}

func (d *Desktop) requestCloseTab() {
	v := d.Context.CurrentTabView()
	if v == nil {
		return
	}
	if !v.Modified() {
		d.closeCurrentTab()
		return
	}
	prompt := d.NewSavePrompt(v, d.closeCurrentTab)
	d.App.AddWindow(prompt)
	d.App.SetActive(prompt)
}

func (d *Desktop) closeCurrentTab() {
	d.Context.CloseCurrentTab()
	d.Views.SetCurrentView(d.Context.CurrentTabView())
	d.App.SetActive(d.Main)
}

func (d *Desktop) confirmCloseWindow() bool {
	v := d.Context.CurrentTabView()
	if v == nil || !v.Modified() {
		return true
	}
	prompt := d.NewSavePrompt(v, func() {
		d.closeCurrentTab()
		_ = d.Main.Close()
	})
	d.App.AddWindow(prompt)
	d.App.SetActive(prompt)
	return false
}
