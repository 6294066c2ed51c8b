package database

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// withVersionBump 在 update 加上 version +1 與 updatedAt
//
// document 形式: $inc version / $currentDate updatedAt
// pipeline 形式: 最後追加一個 $set stage
func withVersionBump(update interface{}) (interface{}, error) {
	switch u := update.(type) {
	case bson.M:
		return bumpDocument(u)
	case bson.D:
		return bumpDocument(dToM(u))
	case mongo.Pipeline:
		return bumpPipeline(u)
	case []bson.D:
		return bumpPipeline(mongo.Pipeline(u))
	case []bson.M:
		stages := make(mongo.Pipeline, 0, len(u))
		for _, s := range u {
			stage := bson.D{}
			for k, v := range s {
				stage = append(stage, bson.E{Key: k, Value: v})
			}
			stages = append(stages, stage)
		}
		return bumpPipeline(stages)
	default:
		return nil, ErrUnsupportedUpdate
	}
}

func bumpDocument(u bson.M) (bson.M, error) {
	out := make(bson.M, len(u)+2)
	for op, fields := range u {
		if hasField(fields, VersionField) {
			return nil, ErrVersionManaged
		}
		out[op] = fields
	}

	inc := bson.M{}
	if existing, ok := out["$inc"]; ok {
		inc = toM(existing)
	}
	inc[VersionField] = 1
	out["$inc"] = inc

	// caller 自己 $set updatedAt 時不可再 $currentDate，否則 mongo 會報 conflict
	if !hasField(out["$set"], UpdatedAtField) {
		current := bson.M{}
		if existing, ok := out["$currentDate"]; ok {
			current = toM(existing)
		}
		current[UpdatedAtField] = true
		out["$currentDate"] = current
	}
	return out, nil
}

func bumpPipeline(stages mongo.Pipeline) (mongo.Pipeline, error) {
	out := make(mongo.Pipeline, 0, len(stages)+1)
	for _, stage := range stages {
		for _, e := range stage {
			if hasField(e.Value, VersionField) {
				return nil, ErrVersionManaged
			}
		}
		out = append(out, stage)
	}
	out = append(out, bson.D{{Key: "$set", Value: bson.M{
		VersionField: bson.M{"$add": bson.A{
			bson.M{"$ifNull": bson.A{"$" + VersionField, 0}},
			1,
		}},
		UpdatedAtField: "$$NOW",
	}}})
	return out, nil
}

func toM(v interface{}) bson.M {
	switch m := v.(type) {
	case bson.M:
		out := make(bson.M, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out
	case map[string]interface{}:
		return toM(bson.M(m))
	case bson.D:
		return dToM(m)
	default:
		return bson.M{}
	}
}

func dToM(d bson.D) bson.M {
	out := make(bson.M, len(d))
	for _, e := range d {
		out[e.Key] = e.Value
	}
	return out
}

func hasField(v interface{}, field string) bool {
	switch m := v.(type) {
	case bson.M:
		_, ok := m[field]
		return ok
	case map[string]interface{}:
		_, ok := m[field]
		return ok
	case bson.D:
		for _, e := range m {
			if e.Key == field {
				return true
			}
		}
	}
	return false
}

// ArrayEdit 陣列欄位的明確增刪 (先移除再加入，結果不重複)
type ArrayEdit struct {
	Field  string
	Add    []string
	Remove []string
}

// Pipeline 轉成單一 stage 的 pipeline update
func (e ArrayEdit) Pipeline() mongo.Pipeline {
	add := e.Add
	if add == nil {
		add = []string{}
	}
	remove := e.Remove
	if remove == nil {
		remove = []string{}
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			e.Field: bson.M{"$setUnion": bson.A{
				bson.M{"$setDifference": bson.A{
					bson.M{"$ifNull": bson.A{"$" + e.Field, bson.A{}}},
					remove,
				}},
				add,
			}},
		}}},
	}
}
