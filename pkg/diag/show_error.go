package diag

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/mattn/go-isatty"
)

// Shower wraps the Show function.
type Shower interface {
	// Show takes an indentation string and shows.
	Show(indent string) string
}

var sgrPattern = regexp.MustCompile("\033\\[[0-9;]*m")

// ShowError shows an error to w. It uses the Show method if the error
// implements Shower, and prints the error message in the same style
// otherwise. ANSI attributes are stripped unless w is a terminal.
func ShowError(w io.Writer, err error) {
	var text string
	if shower, ok := err.(Shower); ok {
		text = shower.Show("") + "\n"
	} else {
		text = fmt.Sprintf("\033[31;1m%s\033[m\n", err.Error())
	}
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		text = sgrPattern.ReplaceAllString(text, "")
	}
	fmt.Fprint(w, text)
}
