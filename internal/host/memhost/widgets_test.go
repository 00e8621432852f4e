package memhost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binjactl/uiengine/internal/host"
)

func TestProcessEvents_PrunesAnsweredWindows(t *testing.T) {
	app := NewApp()
	main := NewMainWindow("main")
	app.AddWindow(main)

	box := NewMessageBox("Save changes?", []string{"Save", "Cancel"}, nil)
	app.AddWindow(box)
	app.SetActive(box)
	require.Len(t, app.TopLevelWindows(), 2)

	buttons := host.Descendants(box)
	require.NotEmpty(t, buttons)
	require.NoError(t, buttons[0].(*Button).Click())
	app.ProcessEvents()

	assert.Equal(t, []host.Window{main}, app.TopLevelWindows())
	assert.Nil(t, app.ActiveWindow())
}

func TestProcessEvents_KeepsMerelyHiddenWindows(t *testing.T) {
	app := NewApp()
	w := NewWindow("OptionsDialog", "Open with Options")
	app.AddWindow(w)

	w.SetVisible(false)
	app.ProcessEvents()
	require.Len(t, app.TopLevelWindows(), 1)

	w.SetVisible(true)
	assert.Len(t, host.VisibleWindows(app), 1)
}

func TestOptionsDialog_AcceptLoadsOnce(t *testing.T) {
	f := filepath.Join(t.TempDir(), "fw.bin")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	d := NewDesktop("main")
	dlg := d.NewOptionsDialog(f)
	d.App.AddWindow(dlg)

	require.NoError(t, dlg.Accept())
	require.NoError(t, dlg.Accept())
	d.App.ProcessEvents()

	assert.Equal(t, []string{f}, d.Views.Loads())
	assert.Len(t, d.App.TopLevelWindows(), 1, "only the main window is left")
}
