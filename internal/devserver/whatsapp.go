package devserver

import (
	"regexp"
	"sort"
	"strings"
)

// parsedMessage is one line of a WhatsApp chat export.
type parsedMessage struct {
	Date   string
	Time   string
	Sender string
	Text   string
}

// The three export layouts seen in the wild: iOS brackets with seconds,
// Android 12-hour, Android 24-hour.
var exportPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{4}),\s*(\d{1,2}:\d{2}:\d{2}\s*(?:AM|PM))\]\s*(.*?):\s*(.*)`),
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}),\s*(\d{1,2}:\d{2}(?::\d{2})?\s*(?:AM|PM))\s*-\s*(.*?):\s*(.*)`),
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}),\s*(\d{1,2}:\d{2})\s*-\s*(.*?):\s*(.*)`),
}

// parseWhatsApp extracts messages from an export. Lines that match no
// pattern (system notices, continuation lines) are skipped, as are media
// placeholders, bare links, and messages of three characters or fewer.
func parseWhatsApp(text string) []parsedMessage {
	var messages []parsedMessage
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, pat := range exportPatterns {
			m := pat.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			msg := strings.TrimSpace(m[4])
			if len(msg) > 3 &&
				!strings.Contains(strings.ToLower(msg), "omitted") &&
				!strings.HasPrefix(msg, "http") {
				messages = append(messages, parsedMessage{
					Date:   m[1],
					Time:   m[2],
					Sender: strings.TrimSpace(m[3]),
					Text:   msg,
				})
			}
			break
		}
	}
	return messages
}

var selfSender = regexp.MustCompile(`(?i)^(me|i|main|mujhe|myself)$`)

var knownEndearments = []string{
	"beta", "bete", "jaan", "jaanu", "babu", "baba", "dikra", "dikri",
	"pora", "pori", "munna", "munni", "laadla", "laadli", "raja", "rani",
	"sona", "bachcha", "mere bachche", "meri jaan", "gudiya", "yaar", "dost",
}

var hindiMarkers = []string{
	"aaj", "kal", "nahi", "bahut", "thoda", "kuch", "sab", "ghar", "yaad",
	"khayal", "rakhna", "kha", "pina", "aana", "jana", "raho", "rehna",
	"hai", "hain", "mera", "meri", "tumhara", "teri", "tere", "apna",
	"bilkul", "zaroor", "jaldi", "theek", "achha", "sunna", "chai",
}

// personProfile is the voice fingerprint derived from the loved one's
// side of the transcript. It drives the templated persona reply.
type personProfile struct {
	Name        string
	Endearments []string
	MixedLang   bool
	Punctuation string
	Samples     []string
}

// buildProfile picks the most frequent non-self sender as the persona
// and derives their style from their messages.
func buildProfile(messages []parsedMessage) personProfile {
	freq := make(map[string]int)
	for _, m := range messages {
		if !selfSender.MatchString(m.Sender) {
			freq[m.Sender]++
		}
	}
	if len(freq) == 0 {
		return personProfile{Punctuation: "."}
	}

	senders := make([]string, 0, len(freq))
	for s := range freq {
		senders = append(senders, s)
	}
	sort.Slice(senders, func(i, j int) bool {
		if freq[senders[i]] != freq[senders[j]] {
			return freq[senders[i]] > freq[senders[j]]
		}
		return senders[i] < senders[j]
	})
	name := senders[0]

	var theirs []string
	for _, m := range messages {
		if m.Sender == name && len(m.Text) > 3 {
			theirs = append(theirs, m.Text)
		}
	}
	p := personProfile{Name: name, Punctuation: "."}
	if len(theirs) == 0 {
		return p
	}

	allText := strings.ToLower(strings.Join(theirs, " "))
	for _, e := range knownEndearments {
		if strings.Contains(allText, e) {
			p.Endearments = append(p.Endearments, e)
		}
	}

	hindi := 0
	for _, w := range hindiMarkers {
		if strings.Contains(allText, w) {
			hindi++
		}
	}
	p.MixedLang = hindi >= 4

	exclaims, ellipses := 0, 0
	for _, t := range theirs {
		if strings.HasSuffix(strings.TrimRight(t, " "), "!") {
			exclaims++
		}
		if strings.Contains(t, "...") {
			ellipses++
		}
	}
	switch {
	case exclaims*10 > len(theirs)*3:
		p.Punctuation = "!"
	case ellipses*10 > len(theirs)*2:
		p.Punctuation = "..."
	}

	// Warm, mid-length messages anchor the templated replies.
	for _, t := range theirs {
		if n := len(strings.Fields(t)); n >= 4 && n <= 40 {
			p.Samples = append(p.Samples, t)
			if len(p.Samples) == 30 {
				break
			}
		}
	}
	return p
}
