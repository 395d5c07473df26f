package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/roach88/chartsync/internal/diagram"
	"github.com/roach88/chartsync/internal/remote"
)

// Text renderings of command results. JSON output encodes the same values.

type localList []diagram.Summary

func (l localList) String() string {
	if len(l) == 0 {
		return "No local diagrams."
	}
	return table("ID\tNAME\tDATABASE\tTABLES\tUPDATED", len(l), func(i int) string {
		s := l[i]
		return fmt.Sprintf("%s\t%s\t%s\t%d\t%s", s.ID, s.Name, s.DatabaseType, s.TableCount,
			s.UpdatedAt.Time().Format("2006-01-02 15:04:05"))
	})
}

type remoteList []remote.DiagramInfo

func (l remoteList) String() string {
	if len(l) == 0 {
		return "No diagrams on the server."
	}
	return table("ID\tNAME\tDATABASE\tTABLES\tVERSION\tUPDATED", len(l), func(i int) string {
		d := l[i]
		return fmt.Sprintf("%s\t%s\t%s\t%d\t%d\t%s", d.DiagramID, d.Name, d.DatabaseType, d.TableCount, d.Version, d.UpdatedAt)
	})
}

type versionList []remote.VersionInfo

func (l versionList) String() string {
	if len(l) == 0 {
		return "No versions."
	}
	return table("VERSION\tCREATED\tDESCRIPTION", len(l), func(i int) string {
		v := l[i]
		return fmt.Sprintf("%d\t%s\t%s", v.Version, v.CreatedAt, v.Description)
	})
}

func table(header string, n int, row func(int) string) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	for i := 0; i < n; i++ {
		fmt.Fprintln(w, row(i))
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

type loginResult struct {
	User   remote.User `json:"user"`
	Server string      `json:"server"`
	Signup bool        `json:"signup"`
}

func (r loginResult) String() string {
	verb := "Logged in"
	if r.Signup {
		verb = "Signed up"
	}
	return fmt.Sprintf("%s as %s at %s", verb, r.User.Email, r.Server)
}

type diagramResult struct {
	Action    string `json:"action"`
	DiagramID string `json:"diagram_id"`
	Name      string `json:"name,omitempty"`
	Tables    int    `json:"tables"`
	Version   int    `json:"version,omitempty"`
}

func (r diagramResult) String() string {
	s := fmt.Sprintf("%s %s", r.Action, r.DiagramID)
	if r.Name != "" {
		s += fmt.Sprintf(" (%s)", r.Name)
	}
	s += fmt.Sprintf(", %d table(s)", r.Tables)
	if r.Version > 0 {
		s += fmt.Sprintf(", version %d", r.Version)
	}
	return s
}

type pullAllResult struct {
	DiagramIDs []string `json:"diagram_ids"`
	Failed     []string `json:"failed,omitempty"`
}

func (r pullAllResult) String() string {
	s := fmt.Sprintf("Pulled %d diagram(s)", len(r.DiagramIDs))
	if len(r.DiagramIDs) > 0 {
		s += ": " + strings.Join(r.DiagramIDs, ", ")
	}
	for _, f := range r.Failed {
		s += "\n  failed: " + f
	}
	return s
}

type message struct {
	Message string `json:"message"`
}

func (m message) String() string { return m.Message }
