// Package awstest provides in-memory stand-ins for the AWS service interfaces
// declared in internal/aws. They understand exactly the expressions the
// storefront stores issue and nothing more.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// Dynamo is an in-memory DynamoDB supporting PutItem, GetItem, UpdateItem,
// DeleteItem, Scan and TransactWriteItems with simple condition expressions.
type Dynamo struct {
	mu     sync.Mutex
	keys   map[string]string // table -> partition key attribute
	tables map[string]map[string]item

	// FailOn makes the named operation (e.g. "PutItem") return the error.
	FailOn map[string]error
	Calls  map[string]int
}

// NewDynamo creates a fake with the given tables (table name -> partition key attribute).
func NewDynamo(tables map[string]string) *Dynamo {
	d := &Dynamo{
		keys:   map[string]string{},
		tables: map[string]map[string]item{},
		FailOn: map[string]error{},
		Calls:  map[string]int{},
	}
	for name, pk := range tables {
		d.keys[name] = pk
		d.tables[name] = map[string]item{}
	}
	return d
}

// Item returns a copy of the raw stored item, or nil.
func (d *Dynamo) Item(table, pk string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	it, ok := d.tables[table][pk]
	if !ok {
		return nil
	}
	return copyItem(it)
}

// Len reports how many items a table holds.
func (d *Dynamo) Len(table string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tables[table])
}

func (d *Dynamo) enter(op string) error {
	d.Calls[op]++
	if err, ok := d.FailOn[op]; ok && err != nil {
		return err
	}
	return nil
}

func (d *Dynamo) pkOf(table string, it item) (string, error) {
	attr, ok := d.keys[table]
	if !ok {
		return "", fmt.Errorf("awstest: unknown table %q", table)
	}
	v, ok := it[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("awstest: item in %q missing string key %q", table, attr)
	}
	return v.Value, nil
}

func (d *Dynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("PutItem"); err != nil {
		return nil, err
	}
	if err := d.put(*in.TableName, in.Item, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) put(table string, it item, cond *string, names map[string]string, values map[string]types.AttributeValue) error {
	pk, err := d.pkOf(table, it)
	if err != nil {
		return err
	}
	existing := d.tables[table][pk]
	if cond != nil {
		ok, err := evalCondition(*cond, existing, names, values)
		if err != nil {
			return err
		}
		if !ok {
			return &types.ConditionalCheckFailedException{Message: cond}
		}
	}
	d.tables[table][pk] = copyItem(it)
	return nil
}

func (d *Dynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetItem"); err != nil {
		return nil, err
	}
	pk, err := d.pkOf(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	it, ok := d.tables[*in.TableName][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(it)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("UpdateItem"); err != nil {
		return nil, err
	}
	table := *in.TableName
	pk, err := d.pkOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	existing, exists := d.tables[table][pk]
	if in.ConditionExpression != nil {
		ok, err := evalCondition(*in.ConditionExpression, existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: in.ConditionExpression}
		}
	}
	if !exists {
		existing = copyItem(in.Key)
	}
	updated := copyItem(existing)
	if in.UpdateExpression != nil {
		if err := applySet(*in.UpdateExpression, updated, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	d.tables[table][pk] = updated
	return &dyn.UpdateItemOutput{Attributes: copyItem(updated)}, nil
}

func (d *Dynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("DeleteItem"); err != nil {
		return nil, err
	}
	pk, err := d.pkOf(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	delete(d.tables[*in.TableName], pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (d *Dynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Scan"); err != nil {
		return nil, err
	}
	tbl, ok := d.tables[*in.TableName]
	if !ok {
		return nil, fmt.Errorf("awstest: unknown table %q", *in.TableName)
	}
	pks := make([]string, 0, len(tbl))
	for pk := range tbl {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	var out []item
	for _, pk := range pks {
		it := tbl[pk]
		if in.FilterExpression != nil {
			match, err := evalCondition(*in.FilterExpression, it, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
		}
		out = append(out, copyItem(it))
	}
	return &dyn.ScanOutput{Items: out, Count: int32(len(out))}, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("TransactWriteItems"); err != nil {
		return nil, err
	}
	// check every condition before applying anything
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	cancelled := false
	for i, ti := range in.TransactItems {
		p := ti.Put
		if p == nil {
			return nil, errors.New("awstest: only Put is supported in transactions")
		}
		reasons[i].Code = sdkaws.String("None")
		if p.ConditionExpression == nil {
			continue
		}
		pk, err := d.pkOf(*p.TableName, p.Item)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(*p.ConditionExpression, d.tables[*p.TableName][pk], p.ExpressionAttributeNames, p.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			reasons[i].Code = sdkaws.String("ConditionalCheckFailed")
			cancelled = true
		}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for _, ti := range in.TransactItems {
		p := ti.Put
		pk, _ := d.pkOf(*p.TableName, p.Item)
		d.tables[*p.TableName][pk] = copyItem(p.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// evalCondition understands "attribute_not_exists(a)", "attribute_exists(a)"
// and "a = :v", optionally joined with AND.
func evalCondition(expr string, it item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)
		var ok bool
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")"), names)
			_, present := it[attr]
			ok = !present
		case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")"), names)
			_, ok = it[attr]
		default:
			lhs, rhs, found := strings.Cut(clause, " = ")
			if !found {
				return false, fmt.Errorf("awstest: unsupported expression %q", clause)
			}
			want, present := values[strings.TrimSpace(rhs)]
			if !present {
				return false, fmt.Errorf("awstest: missing value %s", rhs)
			}
			got, present := it[resolveName(strings.TrimSpace(lhs), names)]
			ok = present && equal(got, want)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func applySet(expr string, it item, names map[string]string, values map[string]types.AttributeValue) error {
	body, found := strings.CutPrefix(strings.TrimSpace(expr), "SET ")
	if !found {
		return fmt.Errorf("awstest: unsupported update %q", expr)
	}
	for _, assign := range strings.Split(body, ",") {
		lhs, rhs, found := strings.Cut(assign, "=")
		if !found {
			return fmt.Errorf("awstest: unsupported assignment %q", assign)
		}
		v, ok := values[strings.TrimSpace(rhs)]
		if !ok {
			return fmt.Errorf("awstest: missing value %s", rhs)
		}
		it[resolveName(strings.TrimSpace(lhs), names)] = v
	}
	return nil
}

func resolveName(n string, names map[string]string) string {
	if strings.HasPrefix(n, "#") {
		if real, ok := names[n]; ok {
			return real
		}
	}
	return n
}

func equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}

func copyItem(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
