package metadata

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// DiffPatch computes the RFC-6902 JSON Patch transforming prev's body
// into next's body. evanphx/json-patch/v5 only generates RFC-7396
// merge patches, so the 6902 op list is built directly here; evanphx's
// Patch/Apply is used by ApplyPatch below to verify the result
// actually transforms prev into next, which is the property that
// matters (§8: "applying the produced JSON-Patch to v_n yields v_{n+1}").
func DiffPatch(prev, next Descriptor) ([]PatchOp, error) {
	prevMap, err := toMap(prev)
	if err != nil {
		return nil, err
	}
	nextMap, err := toMap(next)
	if err != nil {
		return nil, err
	}

	var ops []PatchOp
	diffObjects("", prevMap, nextMap, &ops)
	sortOps(ops)
	return ops, nil
}

// ApplyPatch applies ops to prev's canonical JSON using evanphx's
// RFC-6902 executor and unmarshals the result into a Descriptor.
func ApplyPatch(prev Descriptor, ops []PatchOp) (Descriptor, error) {
	prevJSON, err := CanonicalJSON(prev)
	if err != nil {
		return Descriptor{}, err
	}
	patchJSON, err := json.Marshal(ops)
	if err != nil {
		return Descriptor{}, err
	}
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return Descriptor{}, fmt.Errorf("decode patch: %w", err)
	}
	resultJSON, err := patch.Apply(prevJSON)
	if err != nil {
		return Descriptor{}, fmt.Errorf("apply patch: %w", err)
	}
	var out Descriptor
	if err := json.Unmarshal(resultJSON, &out); err != nil {
		return Descriptor{}, err
	}
	return out, nil
}

func toMap(d Descriptor) (map[string]interface{}, error) {
	raw, err := CanonicalJSON(d)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func diffObjects(prefix string, prev, next map[string]interface{}, ops *[]PatchOp) {
	for key, nextVal := range next {
		path := prefix + "/" + escapePointerToken(key)
		prevVal, existed := prev[key]
		if !existed {
			*ops = append(*ops, PatchOp{Op: "add", Path: path, Value: nextVal})
			continue
		}
		if !reflect.DeepEqual(prevVal, nextVal) {
			prevChild, prevIsObj := prevVal.(map[string]interface{})
			nextChild, nextIsObj := nextVal.(map[string]interface{})
			if prevIsObj && nextIsObj {
				diffObjects(path, prevChild, nextChild, ops)
				continue
			}
			*ops = append(*ops, PatchOp{Op: "replace", Path: path, Value: nextVal})
		}
	}
	for key := range prev {
		if _, stillPresent := next[key]; !stillPresent {
			*ops = append(*ops, PatchOp{Op: "remove", Path: prefix + "/" + escapePointerToken(key)})
		}
	}
}

func escapePointerToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	token = strings.ReplaceAll(token, "/", "~1")
	return token
}

func sortOps(ops []PatchOp) {
	sort.Slice(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })
}
