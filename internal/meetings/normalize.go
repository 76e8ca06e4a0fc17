package meetings

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/KaramelBytes/granola-mcp/internal/source"
)

var (
	titleFields = []string{"title", "name", "google_calendar_event.summary"}
	startFields = []string{"created_at", "start_ts", "google_calendar_event.start.dateTime"}
	endFields   = []string{"end_ts", "ended_at", "google_calendar_event.end.dateTime"}
	notesFields = []string{"notes_plain", "notes_markdown", "notes"}
)

// providerCodes maps conferencing providers to short platform codes.
var providerCodes = map[string]string{
	"google_meet":     "meet",
	"hangouts_meet":   "meet",
	"zoom":            "zoom",
	"microsoft_teams": "teams",
	"teams":           "teams",
	"webex":           "webex",
}

// hostCodes maps conference URL hosts to platform codes when no provider is set.
var hostCodes = map[string]string{
	"meet.google.com":     "meet",
	"zoom.us":             "zoom",
	"teams.microsoft.com": "teams",
	"teams.live.com":      "teams",
	"webex.com":           "webex",
}

// Normalize builds a Meeting from doc and the snapshot side tables. It
// reports false for documents that are not meetings or carry no identifier.
// tables may be nil.
func Normalize(doc source.RawDocument, tables *source.Snapshot) (Meeting, bool) {
	if !doc.IsObject() {
		return Meeting{}, false
	}
	id := doc.ID()
	if id == "" {
		return Meeting{}, false
	}
	if t := doc.Get("type"); declared(t) && !(t.Type == gjson.String && t.Str == "meeting") {
		return Meeting{}, false
	}

	m := Meeting{
		ID:           id,
		Title:        firstText(doc, titleFields...),
		StartTS:      firstScalar(doc, startFields...),
		EndTS:        firstScalar(doc, endFields...),
		Participants: participants(doc.Get("people")),
		Notes:        firstText(doc, notesFields...),
		Overview:     firstText(doc, "overview"),
		Summary:      firstText(doc, "summary"),
	}
	if m.Title == "" {
		m.Title = UntitledMeeting
	}
	if tables != nil {
		if raw, ok := tables.Metadata[id]; ok {
			m.Platform = platform(gjson.ParseBytes(raw))
		}
		m.FolderID, m.FolderName = folder(id, tables)
	}
	return m, true
}

// declared reports whether a field carries a value: not null, false, zero,
// an empty string or an empty array or object.
func declared(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	case gjson.JSON:
		return len(r.Array()) > 0 || len(r.Map()) > 0
	}
	return r.Exists()
}

// firstText returns the first non-empty string value; other types are skipped.
func firstText(doc source.RawDocument, paths ...string) string {
	for _, p := range paths {
		if r := doc.Get(p); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// firstScalar is firstText that also accepts numbers.
func firstScalar(doc source.RawDocument, paths ...string) string {
	for _, p := range paths {
		r := doc.Get(p)
		switch r.Type {
		case gjson.String:
			if r.Str != "" {
				return r.Str
			}
		case gjson.Number:
			return r.String()
		}
	}
	return ""
}

func participants(people gjson.Result) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	switch {
	case people.IsObject():
		add(personName(people.Get("creator")))
		for _, a := range people.Get("attendees").Array() {
			add(personName(a))
		}
	case people.IsArray():
		for _, p := range people.Array() {
			add(personName(p))
		}
	}
	return out
}

// personName accepts plain strings or objects with a name or email.
func personName(p gjson.Result) string {
	if p.Type == gjson.String {
		return p.Str
	}
	if !p.IsObject() {
		return ""
	}
	for _, path := range []string{"name", "details.person.name.fullName", "email"} {
		if r := p.Get(path); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

func platform(meta gjson.Result) string {
	conf := meta.Get("conference")
	if provider := conf.Get("provider"); provider.Type == gjson.String && provider.Str != "" {
		p := strings.ToLower(provider.Str)
		if code, ok := providerCodes[p]; ok {
			return code
		}
		return p
	}
	if u := conf.Get("url"); u.Type == gjson.String && u.Str != "" {
		return platformFromURL(u.Str)
	}
	return ""
}

func platformFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for suffix, code := range hostCodes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return code
		}
	}
	return ""
}

// folder returns the first list, in file order, that contains id.
func folder(id string, tables *source.Snapshot) (string, string) {
	for _, l := range tables.Lists {
		for _, member := range l.DocumentIDs {
			if member != id {
				continue
			}
			name := ""
			if raw, ok := tables.ListMetadata[l.ID]; ok {
				attrs := gjson.ParseBytes(raw)
				for _, p := range []string{"title", "name"} {
					if r := attrs.Get(p); r.Type == gjson.String && r.Str != "" {
						name = r.Str
						break
					}
				}
			}
			return l.ID, name
		}
	}
	return "", ""
}
