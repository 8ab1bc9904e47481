package docstore

import (
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func putInput(schema, version, body string) *dyn.PutItemInput {
	name := table
	return &dyn.PutItemInput{
		TableName: &name,
		Item: map[string]types.AttributeValue{
			"doc_key":        &types.AttributeValueMemberS{Value: "n1"},
			"schema":         &types.AttributeValueMemberS{Value: schema},
			"schema_version": &types.AttributeValueMemberN{Value: version},
			"revision":       &types.AttributeValueMemberN{Value: "3"},
			"body":           &types.AttributeValueMemberS{Value: body},
			"updated_at":     &types.AttributeValueMemberS{Value: "2024-01-01T00:00:00Z"},
		},
	}
}
