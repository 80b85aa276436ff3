package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"gar-rock/resume-crunch/internal/models"
)

// ErrMalformedReply means a parser tier could not read the oracle reply.
var ErrMalformedReply = errors.New("malformed oracle reply")

type ParseTier string

const (
	TierStrict    ParseTier = "strict"
	TierHeuristic ParseTier = "heuristic"
	TierDefault   ParseTier = "default"
)

const (
	GenericRecommendation = "Your resume shows good potential. Consider highlighting more specific achievements and quantifiable results to strengthen your application."
	DefaultRecommendation = "Unable to generate AI-powered recommendations at this time. Please ensure your resume includes relevant keywords from the job description, quantifiable achievements, and clear skill demonstrations."
)

var defaultScores = models.ScoreSet{
	OverallScore:    75,
	SkillsMatch:     80,
	ExperienceMatch: 70,
	EducationMatch:  75,
	KeywordsFound:   4,
	TotalKeywords:   8,
}

type ParsedReply struct {
	Scores          map[string]models.ScoreSet
	Recommendations string
	Tier            ParseTier
}

const replySchemaJSON = `{
  "type": "object",
  "required": ["scores"],
  "properties": {
    "scores": {"type": "object"},
    "recommendations": {"type": "string"}
  }
}`

var replySchema = mustSchema(replySchemaJSON)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid reply schema: %v", err))
	}
	return schema
}

var scoreKeys = []string{
	"overall_score", "skills_match", "experience_match",
	"education_match", "keywords_found", "total_keywords",
}

// ParseReply runs the strict, heuristic and default tiers in order and
// always returns a reply.
func ParseReply(raw, name string) *ParsedReply {
	if reply, err := ParseStrict(raw, name); err == nil {
		return reply
	}
	if reply, err := ParseHeuristic(raw, name); err == nil {
		return reply
	}
	return DefaultReply(name)
}

// ParseStrict reads the whole reply as a JSON object with a scores field. A
// surrounding markdown code fence is tolerated. scores may be keyed by
// document name or be a single flat score object, which is filed under name.
func ParseStrict(raw, name string) (*ParsedReply, error) {
	body := []byte(stripCodeFence(raw))

	result, err := replySchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedReply, strings.Join(msgs, "; "))
	}

	var doc struct {
		Scores          map[string]any `json:"scores"`
		Recommendations string         `json:"recommendations"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	byName, err := scoresByName(doc.Scores, name)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]models.ScoreSet, len(byName))
	for docName, v := range byName {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: scores for %q is not an object", ErrMalformedReply, docName)
		}
		set, err := scoreSetFromObject(obj)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedReply, docName, err)
		}
		scores[docName] = set.Normalize()
	}

	return &ParsedReply{
		Scores:          scores,
		Recommendations: strings.TrimSpace(doc.Recommendations),
		Tier:            TierStrict,
	}, nil
}

func scoresByName(scores map[string]any, name string) (map[string]any, error) {
	if _, ok := scores[name]; ok {
		return scores, nil
	}
	for _, key := range scoreKeys {
		if _, ok := scores[key]; ok {
			return map[string]any{name: scores}, nil
		}
	}

	// keyed by a name the oracle made up
	if len(scores) == 1 {
		for _, v := range scores {
			return map[string]any{name: v}, nil
		}
	}
	return nil, fmt.Errorf("%w: no scores for %q", ErrMalformedReply, name)
}

func scoreSetFromObject(obj map[string]any) (models.ScoreSet, error) {
	var (
		vals  [6]int
		found bool
	)
	for i, key := range scoreKeys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return models.ScoreSet{}, fmt.Errorf("%s: %w", key, err)
		}
		vals[i] = n
		found = true
	}
	if !found {
		return models.ScoreSet{}, errors.New("no score fields")
	}

	return models.ScoreSet{
		OverallScore:    vals[0],
		SkillsMatch:     vals[1],
		ExperienceMatch: vals[2],
		EducationMatch:  vals[3],
		KeywordsFound:   vals[4],
		TotalKeywords:   vals[5],
	}, nil
}

func toInt(v any) (int, error) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("out of range: %v", f)
	}
	return int(math.Round(f)), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

var integerPattern = regexp.MustCompile(`-?\d+`)

// ParseHeuristic mines the first six integers of the reply, in order, as the
// six score fields.
func ParseHeuristic(raw, name string) (*ParsedReply, error) {
	matches := integerPattern.FindAllString(raw, -1)
	if len(matches) < 6 {
		return nil, fmt.Errorf("%w: found %d integers, need 6", ErrMalformedReply, len(matches))
	}

	var vals [6]int
	for i := range vals {
		n, err := strconv.Atoi(matches[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		vals[i] = n
	}

	set := models.ScoreSet{
		OverallScore:    vals[0],
		SkillsMatch:     vals[1],
		ExperienceMatch: vals[2],
		EducationMatch:  vals[3],
		KeywordsFound:   max(vals[4], 1),
		TotalKeywords:   max(vals[5], 5),
	}

	return &ParsedReply{
		Scores:          map[string]models.ScoreSet{name: set.Normalize()},
		Recommendations: mineRecommendations(raw),
		Tier:            TierHeuristic,
	}, nil
}

// mineRecommendations collects the text after the first "recommendations"
// marker: the rest of that line plus every following non-empty line, without
// the JSON punctuation of almost-JSON replies.
func mineRecommendations(raw string) string {
	lines := strings.Split(raw, "\n")

	var parts []string
	found := false
	for _, line := range lines {
		if !found {
			idx := strings.Index(strings.ToLower(line), "recommendations")
			if idx < 0 {
				continue
			}
			found = true
			line = line[idx+len("recommendations"):]
			line = strings.TrimLeft(line, "\"':= \t")
		}

		if line = cleanRecommendationLine(line); line != "" {
			parts = append(parts, line)
		}
	}

	text := strings.Join(parts, " ")
	if len(text) < 10 {
		return GenericRecommendation
	}
	return text
}

func cleanRecommendationLine(line string) string {
	line = strings.Trim(strings.TrimSpace(line), "\"'{}[], \t")
	return strings.ReplaceAll(line, `\"`, `"`)
}

// DefaultReply is the fixed low-confidence answer.
func DefaultReply(name string) *ParsedReply {
	return &ParsedReply{
		Scores:          map[string]models.ScoreSet{name: defaultScores},
		Recommendations: DefaultRecommendation,
		Tier:            TierDefault,
	}
}
