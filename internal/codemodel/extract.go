package codemodel

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"loom/internal/logging"
	"loom/internal/services"
	"loom/internal/stories"
)

// nounSynonyms maps surface nouns to their canonical entity name. Counting
// happens after canonicalization so "task" and "todos" vote for the same
// entity.
var nounSynonyms = map[string]string{
	"todo":  "todo",
	"todos": "todo",
	"task":  "todo",
	"tasks": "todo",
	"item":  "item",
	"items": "item",
	"note":  "note",
	"notes": "note",
	"entry": "entry",
	"entries": "entry",
}

// verbOperations maps action verbs to entity operations.
var verbOperations = map[string]Operation{
	"create": OpCreate,
	"add":    OpCreate,
	"new":    OpCreate,
	"view":   OpRead,
	"see":    OpRead,
	"list":   OpRead,
	"show":   OpRead,
	"edit":     OpUpdate,
	"update":   OpUpdate,
	"change":   OpUpdate,
	"rename":   OpUpdate,
	"complete": OpToggle,
	"mark":     OpToggle,
	"finish":   OpToggle,
	"toggle":   OpToggle,
	"delete": OpDelete,
	"remove": OpDelete,
	"clear":  OpDelete,
}

var wordPattern = regexp.MustCompile(`[a-z][a-z0-9_]*`)

// Extract derives a CodeModel from user stories. The entity is elected by
// canonical-noun frequency across stories; verbs vote for operations. The
// result is deterministic for a given input ordering.
//
// Stories with empty text are skipped. If no story remains, extraction
// fails with an insufficient-input error.
func Extract(input []stories.UserStory, projectName, fallbackEntity string, logger *slog.Logger) (CodeModel, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	usable := make([]stories.UserStory, 0, len(input))
	for _, story := range input {
		if strings.TrimSpace(story.Text) == "" {
			continue
		}
		usable = append(usable, story)
	}
	if len(usable) == 0 {
		return CodeModel{}, services.Wrap(services.ErrInsufficientInput, "building_model", "extract",
			"no usable user stories", nil)
	}

	entityName := electEntity(usable, fallbackEntity, logger)
	operations := electOperations(usable)

	// The identity and creation-timestamp columns are implicit: the
	// renderer emits them on every entity, so the model lists only the
	// user-visible fields.
	fields := []FieldSpec{
		{Name: "title", Type: FieldText, Required: true},
	}
	if containsOp(operations, OpToggle) || containsOp(operations, OpUpdate) {
		fields = append(fields, FieldSpec{Name: "completed", Type: FieldBoolean, Required: false, Default: "false"})
	}

	model := CodeModel{
		ProjectName: projectName,
		Entities: []EntitySpec{{
			Name:       entityName,
			Fields:     fields,
			Operations: operations,
		}},
	}

	logger.Info("code model extracted",
		logging.String("entity", entityName),
		logging.Int("stories", len(usable)),
		logging.Int("operations", len(operations)))

	if err := model.Validate(); err != nil {
		return CodeModel{}, err
	}
	return model, nil
}

type nounVote struct {
	name  string
	count int
	first int
}

// electEntity counts per-story presence of canonical nouns across the
// action and benefit fragments and picks the one present in at least
// max(2, ceil(0.4*n)) stories. Ties break by count descending, then by
// earliest first occurrence.
func electEntity(input []stories.UserStory, fallbackEntity string, logger *slog.Logger) string {
	counts := map[string]*nounVote{}
	order := 0
	for _, story := range input {
		text := story.Text
		if story.WellFormed() {
			text = story.Action + " " + story.Benefit
		}
		seen := map[string]struct{}{}
		for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
			canonical, ok := nounSynonyms[word]
			if !ok {
				continue
			}
			if _, dup := seen[canonical]; dup {
				continue
			}
			seen[canonical] = struct{}{}
			vote, exists := counts[canonical]
			if !exists {
				vote = &nounVote{name: canonical, first: order}
				counts[canonical] = vote
				order++
			}
			vote.count++
		}
	}

	threshold := int(math.Ceil(0.4 * float64(len(input))))
	if threshold < 2 {
		threshold = 2
	}

	votes := make([]*nounVote, 0, len(counts))
	for _, vote := range counts {
		if vote.count >= threshold {
			votes = append(votes, vote)
		}
	}
	if len(votes) == 0 {
		logger.Warn("no dominant entity noun found, using fallback",
			logging.String("fallback", fallbackEntity))
		return fallbackEntity
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].count != votes[j].count {
			return votes[i].count > votes[j].count
		}
		return votes[i].first < votes[j].first
	})
	return votes[0].name
}

// electOperations collects operations voted for by action verbs. Read is
// always present; a story set with no recognized verbs yields create+read.
func electOperations(input []stories.UserStory) []Operation {
	present := map[Operation]bool{OpRead: true}
	matched := false
	for _, story := range input {
		text := story.Action
		if text == "" {
			text = story.Text
		}
		for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
			op, ok := verbOperations[word]
			if !ok {
				continue
			}
			present[op] = true
			matched = true
		}
	}
	if !matched {
		present[OpCreate] = true
	}

	ordered := make([]Operation, 0, len(present))
	for _, op := range operationOrder {
		if present[op] {
			ordered = append(ordered, op)
		}
	}
	return ordered
}

func containsOp(ops []Operation, op Operation) bool {
	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}
	return false
}
