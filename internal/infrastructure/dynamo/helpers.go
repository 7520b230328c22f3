package dynamo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// update describes one UpdateItem call. Keys are attribute names.
type update struct {
	Set         map[string]interface{}
	SetIfAbsent map[string]interface{} // SET a = if_not_exists(a, v)
	Remove      []string
	CondEqual   map[string]interface{} // ConditionExpression: a = v AND ...
}

// updateExpr is the rendered form of an update with placeholder maps.
type updateExpr struct {
	Expr      string
	Condition string
	Names     map[string]string
	Values    map[string]types.AttributeValue
}

// buildUpdateExpr renders u into expression strings. Keys are processed in
// sorted order so the output is deterministic.
func buildUpdateExpr(u update) (*updateExpr, error) {
	ue := &updateExpr{
		Names:  make(map[string]string),
		Values: make(map[string]types.AttributeValue),
	}
	i := 0
	next := func(attr string, v interface{}) (string, string, error) {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		i++
		ue.Names[nameKey] = attr
		if v == nil {
			return nameKey, "", nil
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return "", "", fmt.Errorf("marshal field %s: %w", attr, err)
		}
		ue.Values[valueKey] = av
		return nameKey, valueKey, nil
	}

	var sets []string
	for _, k := range sortedKeys(u.Set) {
		n, v, err := next(k, u.Set[k])
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, fmt.Errorf("field %s: nil value, use Remove", k)
		}
		sets = append(sets, fmt.Sprintf("%s = %s", n, v))
	}
	for _, k := range sortedKeys(u.SetIfAbsent) {
		n, v, err := next(k, u.SetIfAbsent[k])
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, fmt.Errorf("field %s: nil default", k)
		}
		sets = append(sets, fmt.Sprintf("%s = if_not_exists(%s, %s)", n, n, v))
	}
	var removes []string
	for _, k := range u.Remove {
		n, _, _ := next(k, nil)
		removes = append(removes, n)
	}
	if len(sets) == 0 && len(removes) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	var parts []string
	if len(sets) > 0 {
		parts = append(parts, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(removes, ", "))
	}
	ue.Expr = strings.Join(parts, " ")

	var conds []string
	for _, k := range sortedKeys(u.CondEqual) {
		n, v, err := next(k, u.CondEqual[k])
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, fmt.Errorf("condition %s: nil value", k)
		}
		conds = append(conds, fmt.Sprintf("%s = %s", n, v))
	}
	ue.Condition = strings.Join(conds, " AND ")
	return ue, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
