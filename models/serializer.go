package models

import (
	"context"
	"fmt"
	"reflect"

	"github.com/camden-git/fieldsurvey/survey"
	"gorm.io/gorm/schema"
)

func init() {
	schema.RegisterSerializer("surveydoc", DocumentSerializer{})
}

// DocumentSerializer stores a *survey.Document as JSON text. Unlike the
// plain json serializer, loading goes through survey.Decode so stored
// documents are upgraded and validated.
type DocumentSerializer struct{}

func (DocumentSerializer) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue interface{}) error {
	var doc *survey.Document
	if dbValue != nil {
		var data []byte
		switch v := dbValue.(type) {
		case []byte:
			data = v
		case string:
			data = []byte(v)
		default:
			return fmt.Errorf("models: unsupported document column type %T", dbValue)
		}
		if len(data) > 0 {
			decoded, err := survey.Decode(data)
			if err != nil {
				return err
			}
			doc = decoded
		}
	}
	field.ReflectValueOf(ctx, dst).Set(reflect.ValueOf(doc))
	return nil
}

func (DocumentSerializer) Value(ctx context.Context, field *schema.Field, dst reflect.Value, fieldValue interface{}) (interface{}, error) {
	doc, ok := fieldValue.(*survey.Document)
	if !ok {
		return nil, fmt.Errorf("models: unsupported document value %T", fieldValue)
	}
	if doc == nil {
		return nil, nil
	}
	data, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
