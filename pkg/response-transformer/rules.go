package responsetransformer

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

type Rules []Rule

// Rule rewrites text in the bodies of matching responses.
// Empty fields match everything, except Method which defaults to GET.
type Rule struct {
	Prefix  string            `yaml:"prefix"`
	Path    string            `yaml:"path"`
	Method  string            `yaml:"method"`
	Query   map[string]string `yaml:"query"`
	Replace []Replacement     `yaml:"replace"`
	Headers map[string]string `yaml:"headers"`
}

// Replacement replaces every From with To, in rule order.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Apply applies the first matching rule to res.
// Bodies that are not valid UTF-8 are left alone.
func (r Rules) Apply(res *http.Response) error {
	// only apply rules for successes
	if res.StatusCode != http.StatusOK {
		return nil
	}
	// if rule found, apply to response
	if rule := r.find(res); rule != nil {
		return applyRuleToResponse(*rule, res)
	}
	return nil
}

func applyRuleToResponse(rule Rule, res *http.Response) error {
	for name, value := range rule.Headers {
		log.Trace().Msgf("Setting header %s", name)
		res.Header.Set(name, value)
	}
	if len(rule.Replace) == 0 || res.Body == nil {
		return nil
	}

	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return err
	}
	if utf8.Valid(body) {
		text := string(body)
		for _, rep := range rule.Replace {
			log.Trace().Msgf("Replacing %q with %q", rep.From, rep.To)
			text = strings.ReplaceAll(text, rep.From, rep.To)
		}
		body = []byte(text)
	} else {
		log.Debug().Msg("Body is not UTF-8, not rewriting")
	}

	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	res.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return nil
}

func (r Rules) find(res *http.Response) *Rule {
	log.Trace().Msgf("Finding rule for request %s:%s", res.Request.Method, res.Request.URL.Path)
rulesLoop:
	for _, rule := range r {
		log.Trace().Msgf("Checking rule %+v", rule)
		if rule.Method == "" && res.Request.Method != http.MethodGet {
			continue
		}
		if rule.Method != "" && rule.Method != res.Request.Method {
			continue
		}
		if rule.Path != "" && rule.Path != res.Request.URL.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(res.Request.URL.Path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry := res.Request.URL.Query()
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		return &rule
	}
	return nil
}
