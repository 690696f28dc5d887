package pipeline

import (
	"fmt"
	"strings"

	"custanalytics/ml"
)

// maxReportedIssues 错误信息中最多列出的问题数
const maxReportedIssues = 5

// ValidationRule 校验规则
type ValidationRule interface {
	Check(t *Table, schema ml.Schema) []QualityIssue
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Rule    string `json:"rule"`
	Column  string `json:"column,omitempty"`
	Row     int    `json:"row,omitempty"` // 1-based data row, 0 for table-level issues
	Message string `json:"message"`
}

func (qi QualityIssue) String() string {
	if qi.Row > 0 {
		return fmt.Sprintf("row %d: %s", qi.Row, qi.Message)
	}
	return qi.Message
}

// Validator 上传数据校验器
type Validator struct {
	schema ml.Schema
	rules  []ValidationRule
}

// NewValidator 创建校验器，带默认规则
func NewValidator(schema ml.Schema) *Validator {
	v := &Validator{schema: schema}
	v.AddRule(NewRequiredColumnsRule())
	v.AddRule(NewNumericColumnsRule())
	return v
}

// AddRule 添加校验规则
func (v *Validator) AddRule(rule ValidationRule) {
	v.rules = append(v.rules, rule)
}

// Check 返回所有规则发现的问题
func (v *Validator) Check(t *Table) []QualityIssue {
	var issues []QualityIssue
	for _, rule := range v.rules {
		issues = append(issues, rule.Check(t, v.schema)...)
	}
	return issues
}

// Validate 有问题时返回 MalformedInput 错误
func (v *Validator) Validate(t *Table) error {
	issues := v.Check(t)
	if len(issues) == 0 {
		return nil
	}
	messages := make([]string, 0, maxReportedIssues)
	for i, issue := range issues {
		if i == maxReportedIssues {
			messages = append(messages, fmt.Sprintf("and %d more", len(issues)-maxReportedIssues))
			break
		}
		messages = append(messages, issue.String())
	}
	return fmt.Errorf("%w: %s", ml.ErrMalformedInput, strings.Join(messages, "; "))
}

// ============ 校验规则实现 ============

// RequiredColumnsRule 必需列规则
type RequiredColumnsRule struct{}

func NewRequiredColumnsRule() *RequiredColumnsRule {
	return &RequiredColumnsRule{}
}

func (r *RequiredColumnsRule) Name() string {
	return "required_columns"
}

func (r *RequiredColumnsRule) Check(t *Table, schema ml.Schema) []QualityIssue {
	missing := schema.Missing(t.Columns())
	if len(missing) == 0 {
		return nil
	}
	return []QualityIssue{{
		Rule:    r.Name(),
		Message: "missing required columns: " + strings.Join(missing, ", "),
	}}
}

// NumericColumnsRule 数值列规则
type NumericColumnsRule struct{}

func NewNumericColumnsRule() *NumericColumnsRule {
	return &NumericColumnsRule{}
}

func (r *NumericColumnsRule) Name() string {
	return "numeric_columns"
}

func (r *NumericColumnsRule) Check(t *Table, schema ml.Schema) []QualityIssue {
	var issues []QualityIssue
	for _, column := range schema.Numeric {
		if !t.HasColumn(column) {
			continue
		}
		for row := 0; row < t.Len(); row++ {
			value, _ := t.Value(row, column)
			if _, err := parseNumber(strings.TrimSpace(value)); err != nil {
				issues = append(issues, QualityIssue{
					Rule:    r.Name(),
					Column:  column,
					Row:     row + 1,
					Message: fmt.Sprintf("column %s: %q is not a number", column, value),
				})
			}
		}
	}
	return issues
}
