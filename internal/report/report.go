// Package report summarises a finished crawl as a Markdown document.
package report

import (
	"io"
	"strconv"

	"github.com/Harvey-AU/linkstream/internal/crawler"
	"github.com/Harvey-AU/linkstream/internal/util"
	"github.com/nao1215/markdown"
)

// classOrder fixes the row order of the status class table.
var classOrder = []string{
	"1xx", "2xx", "3xx", "4xx", "5xx",
	"timeout", "connection_error", "unexpected_error",
}

// Link is a checked URL that will not be followed.
type Link struct {
	URL    string
	Status crawler.LinkStatus
}

// Summary accumulates the events of one crawl.
type Summary struct {
	StartURL   string
	Domain     string
	Checked    int
	Count      int // from the end event; zero until the crawl finishes
	Finished   bool
	StartError string
	Classes    map[string]int
	Failing    []Link
}

// NewSummary starts an empty summary for a crawl rooted at startURL.
func NewSummary(startURL string) *Summary {
	domain, _ := util.HostOf(startURL)
	return &Summary{
		StartURL: startURL,
		Domain:   domain,
		Classes:  make(map[string]int),
	}
}

// Add folds one event into the summary.
func (s *Summary) Add(evt crawler.Event) {
	switch evt.Kind {
	case crawler.EventStartError:
		s.StartError = evt.Reason
	case crawler.EventCrawlEnd:
		s.Finished = true
		s.Count = evt.Count
	default:
		s.Checked++
		s.Classes[evt.Status.Class()]++
		if !evt.Status.Followable() {
			s.Failing = append(s.Failing, Link{URL: evt.URL, Status: evt.Status})
		}
	}
}

func (s *Summary) outcome() string {
	switch {
	case s.StartError != "":
		return "❌ " + s.StartError
	case s.Finished:
		return "✅ Complete"
	default:
		return "⚠️ Cancelled (partial results)"
	}
}

// WriteMarkdown renders the summary to w.
func (s *Summary) WriteMarkdown(w io.Writer) error {
	md := markdown.NewMarkdown(w)

	md.H1("Link Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + s.StartURL + "`"},
			{"Domain", s.Domain},
			{"Links Checked", strconv.Itoa(s.Checked)},
			{"Status", s.outcome()},
		},
	})
	md.PlainText("")

	if s.StartError != "" {
		md.Caution("The crawl did not start. Check that the start URL is an absolute http or https URL.")
		return md.Build()
	}

	md.H2("Status Classes")
	md.PlainText("")
	rows := make([][]string, 0, len(classOrder))
	for _, class := range classOrder {
		if n := s.Classes[class]; n > 0 {
			rows = append(rows, []string{class, strconv.Itoa(n)})
		}
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(s.Checked) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Class", "Links"}, Rows: rows})
	md.PlainText("")

	md.H2("Failing Links")
	md.PlainText("")
	if len(s.Failing) == 0 {
		md.Tip("Every checked link responded below 400.")
		return md.Build()
	}

	md.Warningf("%d link(s) failed their check or returned an error status.", len(s.Failing))
	md.PlainText("")
	failing := make([][]string, 0, len(s.Failing))
	for _, link := range s.Failing {
		failing = append(failing, []string{util.ExtractPathFromURL(link.URL), link.Status.String(), link.URL})
	}
	md.Table(markdown.TableSet{Header: []string{"Path", "Status", "URL"}, Rows: failing})

	return md.Build()
}
