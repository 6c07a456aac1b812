package actualbudget

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nzfintools/akahu-budget-sync/pkg/budget"
)

// Condition is one predicate of a rule. Field is one of "payee", "notes";
// Op is one of "is", "contains".
type Condition struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// Action is one mutation a rule applies when all its conditions match.
// Field is one of "category", "payee", "notes", "cleared".
type Action struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Rule matches transactions by condition and rewrites them by action.
type Rule struct {
	ID         string
	Conditions []Condition
	Actions    []Action
}

// Ruleset is the ordered set of rules run against every newly created
// transaction.
type Ruleset struct {
	Rules []Rule
}

// Ruleset loads the rules from the budget file. Returns nil when no rules
// exist; that is a valid state for a new budget.
func (s *Session) Ruleset() (*Ruleset, error) {
	rows, err := s.tx.Query(`SELECT id, conditions, actions FROM rules`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		var conditions, actions string
		if err := rows.Scan(&rule.ID, &conditions, &actions); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to parse rule %s conditions: %w", rule.ID, err)
		}
		if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to parse rule %s actions: %w", rule.ID, err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	if len(rules) == 0 {
		return nil, nil
	}
	return &Ruleset{Rules: rules}, nil
}

// Apply runs every matching rule against the transaction, mutating only the
// enumerated mutable fields. Payee and category actions take names and are
// resolved to ids through the session (payees are created on demand).
func (r *Ruleset) Apply(s *Session, t *Transaction, payeeNames map[string]string) error {
	for _, rule := range r.Rules {
		if !rule.matches(t, payeeNames) {
			continue
		}
		for _, action := range rule.Actions {
			if err := applyAction(s, t, action); err != nil {
				return fmt.Errorf("rule %s: %w", rule.ID, err)
			}
		}
	}
	return nil
}

func (rule Rule) matches(t *Transaction, payeeNames map[string]string) bool {
	for _, c := range rule.Conditions {
		var subject string
		switch c.Field {
		case "payee":
			subject = t.ImportedPayee
			if name, ok := payeeNames[t.PayeeID]; ok && name != "" {
				subject = name
			}
		case "notes":
			subject = t.Notes
		default:
			return false
		}

		switch c.Op {
		case "is":
			if !strings.EqualFold(subject, c.Value) {
				return false
			}
		case "contains":
			if !strings.Contains(strings.ToLower(subject), strings.ToLower(c.Value)) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func applyAction(s *Session, t *Transaction, action Action) error {
	switch action.Field {
	case "category":
		id, err := s.findCategoryID(action.Value)
		if err != nil {
			return err
		}
		t.CategoryID = id
	case "payee":
		id, err := s.EnsurePayee(action.Value)
		if err != nil {
			return err
		}
		t.PayeeID = id
	case "notes":
		t.Notes = action.Value
	case "cleared":
		t.Cleared = action.Value == "true"
	default:
		return fmt.Errorf("unknown rule action field %q", action.Field)
	}
	return nil
}

// findCategoryID resolves a category name to its id. Unknown categories are
// left unset rather than invented.
func (s *Session) findCategoryID(name string) (string, error) {
	var id string
	err := s.tx.QueryRow(`SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up category: %w", err)
	}
	return id, nil
}

// DiffFields compares the enumerated mutable fields of a transaction before
// and after rule execution, resolving category and payee ids to display
// names. The result is a human-readable change log like
// "category: Uncategorized -> Groceries".
func DiffFields(before, after Transaction, categoryNames, payeeNames map[string]string) []string {
	var changes []string

	if before.CategoryID != after.CategoryID {
		changes = append(changes, fmt.Sprintf("category: %s -> %s",
			lookupName(categoryNames, before.CategoryID),
			lookupName(categoryNames, after.CategoryID)))
	}
	if before.PayeeID != after.PayeeID {
		changes = append(changes, fmt.Sprintf("payee: %s -> %s",
			lookupName(payeeNames, before.PayeeID),
			lookupName(payeeNames, after.PayeeID)))
	}
	if before.Notes != after.Notes {
		changes = append(changes, fmt.Sprintf("notes: %s -> %s", before.Notes, after.Notes))
	}
	if before.Cleared != after.Cleared {
		changes = append(changes, fmt.Sprintf("cleared: %t -> %t", before.Cleared, after.Cleared))
	}
	if before.Amount != after.Amount {
		changes = append(changes, fmt.Sprintf("amount: %s -> %s",
			budget.Dollars(before.Amount), budget.Dollars(after.Amount)))
	}

	return changes
}

func lookupName(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "Unknown"
}
