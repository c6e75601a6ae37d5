package devserver

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/solaceapp/solace/internal/devserver/storage"
)

var crisisKeywords = []string{
	"suicide", "kill myself", "end it all", "want to die", "no point living",
	"can't go on", "self harm", "hurt myself", "आत्महत्या", "मर जाना",
	"खत्म करना", "जीने का मतलब नहीं", "मारना", "खुद को नुकसान",
}

// helplines in display order.
var helplines = []struct{ Name, Number string }{
	{"iCall", "9152987821"},
	{"AASRA", "9820466726"},
	{"Vandrevala Foundation", "9999666555"},
}

func detectCrisis(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range crisisKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func crisisReply(profile personProfile) string {
	var b strings.Builder
	for _, e := range profile.Endearments {
		if strings.EqualFold(e, "beta") {
			b.WriteString("Beta, ")
			break
		}
	}
	b.WriteString("I am very concerned about you right now. Please reach out for help immediately:\n\n")
	for _, h := range helplines {
		fmt.Fprintf(&b, "📞 %s: %s\n", h.Name, h.Number)
	}
	b.WriteString("\nYou are not alone. Please call now.")
	return b.String()
}

func helplineMap() map[string]string {
	out := make(map[string]string, len(helplines))
	for _, h := range helplines {
		out[h.Name] = h.Number
	}
	return out
}

// scored pairs a memory with its query relevance.
type scored struct {
	Memory storage.Memory
	Score  float64
}

// rankMemories orders memories by word overlap with the query. The dev
// service has no embedding model; bag-of-words overlap is enough to make
// retrieval observable end to end.
func rankMemories(query string, memories []storage.Memory, topK int) []scored {
	qwords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?…")
		if len(w) > 2 {
			qwords[w] = true
		}
	}
	if len(qwords) == 0 {
		return nil
	}

	var out []scored
	for _, m := range memories {
		overlap := 0
		fields := strings.Fields(strings.ToLower(m.Text))
		for _, w := range fields {
			if qwords[strings.Trim(w, ".,!?…")] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score := float64(overlap) / float64(len(qwords))
		if score > 1 {
			score = 1
		}
		out = append(out, scored{Memory: m, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

var warmthMixed = []string{
	"Apna khayal rakhna",
	"Tum theek ho jaoge",
	"Main hamesha tumhare saath hun",
	"Khana kha lena aaj",
	"Teri bahut yaad aati hai",
}

var warmthEnglish = []string{
	"I am always with you",
	"Take care of yourself today",
	"You are stronger than you think",
	"Please eat something",
	"I miss you too",
}

// personaReply composes a templated reply in the loved one's voice:
// opening endearment, a real remembered message as the anchor, a warmth
// line, sign-off, and the recall signature the client renders specially.
func personaReply(profile personProfile, memories []scored) string {
	var parts []string

	if len(profile.Endearments) > 0 {
		e := profile.Endearments[rand.IntN(min(3, len(profile.Endearments)))]
		sep := ","
		if profile.Punctuation == "!" {
			sep = "!"
		}
		parts = append(parts, strings.ToUpper(e[:1])+e[1:]+sep)
	}

	anchor := ""
	if len(memories) > 0 {
		anchor = memories[0].Memory.Text
	} else if len(profile.Samples) > 0 {
		anchor = profile.Samples[rand.IntN(len(profile.Samples))]
	}
	if anchor != "" {
		words := strings.Fields(anchor)
		if len(words) > 35 {
			anchor = strings.Join(words[:35], " ") + "…"
		}
		parts = append(parts, anchor)
	}

	warmth := warmthEnglish
	signoff := "Your "
	if profile.MixedLang {
		warmth = warmthMixed
		signoff = "Tumhara "
	}
	parts = append(parts, warmth[rand.IntN(len(warmth))]+profile.Punctuation)
	parts = append(parts, signoff+profile.Name)

	body := strings.Join(parts, "\n\n")
	body += fmt.Sprintf("\n\n— *Solace is recalling %s's words. I'm an AI companion. In crisis: iCall 9152987821*", profile.Name)
	return body
}
