package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"courtprices/internal/venue"
	"courtprices/lib/textutil"

	"github.com/antzucaro/matchr"
	"github.com/go-playground/validator/v10"
)

// KnownTypes and KnownSurfaces are the tags used across the courts file.
var (
	KnownTypes    = []string{"indoor", "tent", "balloon", "outdoor"}
	KnownSurfaces = []string{"clay", "hard", "carpet", "grass"}
)

// names models commonly answer with instead of the canonical tag, all folded.
var typeSynonyms = map[string]string{
	"hala":    "indoor",
	"hall":    "indoor",
	"kryty":   "indoor",
	"kryte":   "indoor",
	"namiot":  "tent",
	"balon":   "balloon",
	"dome":    "balloon",
	"odkryty": "outdoor",
	"odkryte": "outdoor",
}

var surfaceSynonyms = map[string]string{
	"maczka":     "clay",
	"ziemia":     "clay",
	"ziemna":     "clay",
	"twarda":     "hard",
	"twardy":     "hard",
	"akryl":      "hard",
	"dywan":      "carpet",
	"wykladzina": "carpet",
	"trawa":      "grass",
}

// tags closer than this to a known tag are taken to be a misspelling of it.
const fuzzyThreshold = 0.9

// vocabulary is the set of tags a proposal may use for one venue: the known tags plus
// whatever the venue itself declares.
type vocabulary struct {
	types    map[string]bool
	surfaces map[string]bool
}

func newVocabulary(courts []venue.CourtSpec) vocabulary {
	v := vocabulary{types: map[string]bool{}, surfaces: map[string]bool{}}
	for _, t := range KnownTypes {
		v.types[t] = true
	}
	for _, s := range KnownSurfaces {
		v.surfaces[s] = true
	}
	for _, c := range courts {
		if c.Type != "" {
			v.types[c.Type] = true
		}
		if c.Surface != "" {
			v.surfaces[c.Surface] = true
		}
	}
	return v
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeTag(tag string, allowed map[string]bool, synonyms map[string]string) string {
	tag = strings.TrimSpace(tag)
	if allowed[tag] {
		return tag
	}
	folded := textutil.Fold(tag)
	if allowed[folded] {
		return folded
	}
	if canonical, ok := synonyms[folded]; ok {
		return canonical
	}

	best := ""
	bestScore := 0.0
	for _, candidate := range sortedKeys(allowed) {
		score := matchr.JaroWinkler(folded, candidate, false)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	if bestScore >= fuzzyThreshold {
		return best
	}
	return folded
}

var dayOrder = []string{"mo", "tu", "we", "th", "fr", "st", "su"}

var dayAliases = map[string]string{
	"sa": "st",
}

var hourRangeRegex = regexp.MustCompile(`^(\d{1,2})(?::00)?-(\d{1,2})(?::00)?$`)

// expandDays turns day ranges ("mo-fr") and lists ("sa,su") into single day tokens.
func expandDays(days string) []string {
	var out []string
	for _, part := range strings.Split(days, ",") {
		part = strings.TrimSpace(part)
		if alias, ok := dayAliases[part]; ok {
			part = alias
		}
		from, to, isRange := strings.Cut(part, "-")
		if !isRange {
			out = append(out, part)
			continue
		}
		if alias, ok := dayAliases[from]; ok {
			from = alias
		}
		if alias, ok := dayAliases[to]; ok {
			to = alias
		}
		start, end := indexOf(dayOrder, from), indexOf(dayOrder, to)
		if start < 0 || end < 0 || end < start {
			// left as is, validation reports it
			out = append(out, part)
			continue
		}
		out = append(out, dayOrder[start:end+1]...)
	}
	return out
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}

func normalizeHours(hours string) string {
	groups := hourRangeRegex.FindStringSubmatch(hours)
	if groups == nil {
		return hours
	}
	start, _ := strconv.Atoi(groups[1])
	end, _ := strconv.Atoi(groups[2])
	return fmt.Sprintf("%d-%d", start, end)
}

var currencySuffix = regexp.MustCompile(`(?i)\s*(zł|zl|pln)(\s*/\s*h)?$`)

func normalizePrice(p venue.Price) venue.Price {
	text := strings.TrimSpace(p.Text)
	text = currencySuffix.ReplaceAllString(text, "")
	text = strings.Replace(text, ",", ".", 1)
	return venue.StringPrice(strings.TrimSpace(text))
}

func normalizeSchedule(schedule venue.Schedule) venue.Schedule {
	out := venue.Schedule{}
	seen := map[string]bool{}
	for _, rule := range schedule {
		key := strings.ToLower(strings.ReplaceAll(rule.Key, " ", ""))
		days, hours, ok := strings.Cut(key, ":")
		if !ok {
			out = append(out, venue.Rule{Key: key, Price: normalizePrice(rule.Price)})
			continue
		}
		hours = normalizeHours(hours)
		for _, day := range expandDays(days) {
			k := day + ":" + hours
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, venue.Rule{Key: k, Price: normalizePrice(rule.Price)})
		}
	}
	return out
}

func (v vocabulary) normalize(p venue.Proposal) venue.Proposal {
	p.Season = strings.ToLower(strings.TrimSpace(p.Season))
	p.From = venue.Date(strings.TrimSpace(string(p.From)))
	p.To = venue.Date(strings.TrimSpace(string(p.To)))

	courts := make([]venue.ProposedCourt, len(p.Courts))
	for i, c := range p.Courts {
		courts[i] = venue.ProposedCourt{
			Type:     normalizeTag(c.Type, v.types, typeSynonyms),
			Surface:  normalizeTag(c.Surface, v.surfaces, surfaceSynonyms),
			Schedule: normalizeSchedule(c.Schedule),
		}
	}
	p.Courts = courts
	return p
}

// ValidationError lists everything wrong with a decoded proposal.
type ValidationError struct {
	Problems []string
}

func (e ValidationError) Error() string {
	return "invalid proposal: " + strings.Join(e.Problems, "; ")
}

type ruleSchema struct {
	Key   string `validate:"schedule_key"`
	Price string `validate:"required,numeric"`
}

type courtSchema struct {
	Type     string       `validate:"required,court_type"`
	Surface  string       `validate:"required,court_surface"`
	Schedule []ruleSchema `validate:"dive"`
}

// proposalSchema holds the proposal level fields, courts are validated one by one.
type proposalSchema struct {
	From string `validate:"required,datetime=2006-01-02"`
	To   string `validate:"required,datetime=2006-01-02"`
}

type vocabularyKey struct{}

var scheduleKeyRegex = regexp.MustCompile(`^(\*|!|mo|tu|we|th|fr|st|su|hl):(\d{1,2})-(\d{1,2})$`)

// ValidScheduleKey reports whether key is `<day>:<start>-<end>` with hours in 0..24.
func ValidScheduleKey(key string) bool {
	groups := scheduleKeyRegex.FindStringSubmatch(key)
	if groups == nil {
		return false
	}
	for _, h := range groups[2:] {
		hour, err := strconv.Atoi(h)
		if err != nil || hour > 24 {
			return false
		}
	}
	return true
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterValidation("schedule_key", func(fl validator.FieldLevel) bool {
		return ValidScheduleKey(fl.Field().String())
	})
	validate.RegisterValidationCtx("court_type", func(ctx context.Context, fl validator.FieldLevel) bool {
		v, _ := ctx.Value(vocabularyKey{}).(vocabulary)
		return v.types[fl.Field().String()]
	})
	validate.RegisterValidationCtx("court_surface", func(ctx context.Context, fl validator.FieldLevel) bool {
		v, _ := ctx.Value(vocabularyKey{}).(vocabulary)
		return v.surfaces[fl.Field().String()]
	})

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(proposalSchema)
		from, errFrom := time.Parse(time.DateOnly, p.From)
		to, errTo := time.Parse(time.DateOnly, p.To)
		if errFrom == nil && errTo == nil && to.Before(from) {
			sl.ReportError(p.To, "To", "To", "after_from", p.From)
		}
	}, proposalSchema{})

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(courtSchema)
		if c.Type == "outdoor" && len(c.Schedule) > 0 {
			sl.ReportError(c.Schedule, "Schedule", "Schedule", "outdoor_empty", "")
		}
	}, courtSchema{})

	return validate
}

func toCourtSchema(c venue.ProposedCourt) courtSchema {
	rules := make([]ruleSchema, len(c.Schedule))
	for j, r := range c.Schedule {
		rules[j] = ruleSchema{Key: r.Key, Price: r.Price.Text}
	}
	return courtSchema{Type: c.Type, Surface: c.Surface, Schedule: rules}
}

func describeFieldError(fe validator.FieldError, field string, v vocabulary) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: is missing", field)
	case "court_type":
		return fmt.Sprintf("%s: %q is not one of %s", field, fe.Value(), strings.Join(sortedKeys(v.types), ", "))
	case "court_surface":
		return fmt.Sprintf("%s: %q is not one of %s", field, fe.Value(), strings.Join(sortedKeys(v.surfaces), ", "))
	case "schedule_key":
		return fmt.Sprintf("%s: %q is not a <day>:<start>-<end> rule", field, fe.Value())
	case "numeric":
		return fmt.Sprintf("%s: price %q is not a number", field, fe.Value())
	case "datetime":
		return fmt.Sprintf("%s: %q is not a YYYY-MM-DD date", field, fe.Value())
	case "after_from":
		return fmt.Sprintf("%s: %v is before from %s", field, fe.Value(), fe.Param())
	case "outdoor_empty":
		return fmt.Sprintf("%s: outdoor courts must have an empty schedule", field)
	}
	return fmt.Sprintf("%s: failed %s", field, fe.Tag())
}

// problems validates one schema value, field names are prefixed with prefix instead of
// the schema type name.
func (e Extractor) problems(ctx context.Context, schema any, typeName, prefix string, v vocabulary) ([]string, error) {
	err := e.validate.StructCtx(ctx, schema)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := prefix + strings.TrimPrefix(fe.Namespace(), typeName+".")
		out = append(out, describeFieldError(fe, field, v))
	}
	return out, nil
}

// check validates p and returns it without its invalid courts, which are moved to
// Rejected. Bad dates, or a proposal whose every court is invalid, fail as a whole.
func (e Extractor) check(ctx context.Context, p venue.Proposal, v vocabulary) (venue.Proposal, error) {
	ctx = context.WithValue(ctx, vocabularyKey{}, v)

	header := proposalSchema{From: string(p.From), To: string(p.To)}
	problems, err := e.problems(ctx, header, "proposalSchema", "", v)
	if err != nil {
		return venue.Proposal{}, err
	}
	if len(problems) > 0 {
		return venue.Proposal{}, ValidationError{Problems: problems}
	}

	kept := make([]venue.ProposedCourt, 0, len(p.Courts))
	var all []string
	for i, c := range p.Courts {
		courtProblems, err := e.problems(ctx, toCourtSchema(c), "courtSchema", fmt.Sprintf("Courts[%d].", i), v)
		if err != nil {
			return venue.Proposal{}, err
		}
		if len(courtProblems) > 0 {
			p.Rejected = append(p.Rejected, venue.RejectedCourt{Court: c, Problems: courtProblems})
			all = append(all, courtProblems...)
			continue
		}
		kept = append(kept, c)
	}
	if len(p.Courts) > 0 && len(kept) == 0 {
		return venue.Proposal{}, ValidationError{Problems: all}
	}
	p.Courts = kept
	return p, nil
}
