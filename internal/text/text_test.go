package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeToken(t *testing.T) {
	cases := map[string]string{
		"  Raw ":     "raw",
		"x86_64":     "x86_64",
		"Don't Save": "dontsave",
		"dont-save":  "dontsave",
		"ELF.Mapped": "elf.mapped",
		"":           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeToken(in), "input %q", in)
	}
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "save", NormalizeLabel("&Save"))
	assert.Equal(t, "don't save", NormalizeLabel("  Don't   &Save "))
	assert.Equal(t, "close without saving", NormalizeLabel("Close\tWithout\nSaving"))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"&Save Changes", "  Mapped  ", "x86_64 (Linux)", "DISCARD", "a&&b"}
	for _, in := range inputs {
		tok := NormalizeToken(in)
		assert.Equal(t, tok, NormalizeToken(tok))
		lbl := NormalizeLabel(in)
		assert.Equal(t, lbl, NormalizeLabel(lbl))
	}
}

func TestNormalize_CaseInsensitive(t *testing.T) {
	assert.Equal(t, NormalizeToken("MAPPED"), NormalizeToken("mapped"))
	assert.Equal(t, NormalizeLabel("SAVE ALL"), NormalizeLabel("save all"))
}

func TestFindBestIndex(t *testing.T) {
	assert.Equal(t, 1, FindBestIndex([]string{"Raw", "Mapped"}, "Mapped"))
	assert.Equal(t, -1, FindBestIndex(nil, "x"))
	assert.Equal(t, -1, FindBestIndex([]string{"Raw"}, "   "))
	assert.Equal(t, 0, FindBestIndex([]string{"Don't Save", "Save"}, "dont-save"))
}

func TestFindBestIndex_ExactBeatsEarlierPartial(t *testing.T) {
	items := []string{"x86_64", "x86", "armv7"}
	assert.Equal(t, 1, FindBestIndex(items, "x86"))
}

func TestFindBestIndex_PartialBothDirections(t *testing.T) {
	assert.Equal(t, 0, FindBestIndex([]string{"x86_64", "x86_16"}, "x86"))
	assert.Equal(t, 1, FindBestIndex([]string{"mips", "arm"}, "armv7"))
	assert.Equal(t, -1, FindBestIndex([]string{"mips", "ppc"}, "arm"))
}

func TestFindBestIndex_SkipsBlankItems(t *testing.T) {
	assert.Equal(t, 1, FindBestIndex([]string{"", "Mapped View"}, "mapped"))
}
