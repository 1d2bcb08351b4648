package orchestrator

import "github.com/tripforge/placescout/internal/task"

// mergeResults folds a chunk result into the accumulator. Schedule results
// concatenate their day lists so chunked itineraries stay ordered; freeform
// results merge per top-level key: lists concatenate, objects shallow-merge,
// scalars take the latest value.
func mergeResults(kind task.Kind, acc, next any) any {
	if acc == nil {
		return next
	}

	accMap, ok := acc.(map[string]any)
	nextMap, ok2 := next.(map[string]any)
	if !ok || !ok2 {
		return next
	}

	if kind == task.KindSchedule {
		accMap["days"] = append(asList(accMap["days"]), asList(nextMap["days"])...)
	}

	for k, v := range nextMap {
		if kind == task.KindSchedule && k == "days" {
			continue
		}
		old, exists := accMap[k]
		if !exists {
			accMap[k] = v
			continue
		}
		switch ov := old.(type) {
		case []any:
			if nv, isList := v.([]any); isList {
				accMap[k] = append(ov, nv...)
			} else {
				accMap[k] = v
			}
		case map[string]any:
			if nv, isMap := v.(map[string]any); isMap {
				for kk, vv := range nv {
					ov[kk] = vv
				}
			} else {
				accMap[k] = v
			}
		default:
			accMap[k] = v
		}
	}
	return accMap
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return nil
}
