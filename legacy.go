package layoutmap

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

var legacyImageVariables = jp.MustParseString("$.layoutMaps[*].imageVariables[*]")

// legacyUpgrade counts what upgradeLegacyDependents changed.
type legacyUpgrade struct {
	// Variables is the number of image variables that had dependents.
	Variables int
	// DroppedValues is the number of expected values discarded, including
	// those of dependents without a variable id.
	DroppedValues int
}

// upgradeLegacyDependents rewrites the flat "dependents" list of every image
// variable into dependent groups. Each dependent becomes one group holding a
// list reference to its variable; the expected values have no counterpart
// and are dropped. The dependents key is removed so the upgrade cannot run
// twice on the same data.
func upgradeLegacyDependents(payload map[string]any) (legacyUpgrade, error) {
	var upgraded legacyUpgrade
	for _, node := range legacyImageVariables.Get(payload) {
		variable, ok := node.(map[string]any)
		if !ok {
			continue
		}
		raw, ok := variable["dependents"]
		if !ok {
			continue
		}
		delete(variable, "dependents")
		if raw == nil {
			continue
		}
		dependents, ok := raw.([]any)
		if !ok {
			return upgraded, fmt.Errorf("image variable %v: dependents must be an array", variable["id"])
		}
		if len(dependents) == 0 {
			continue
		}

		var groups []any
		switch existing := variable["dependentGroup"].(type) {
		case nil:
		case []any:
			groups = existing
		default:
			return upgraded, fmt.Errorf("image variable %v: dependentGroup must be an array", variable["id"])
		}

		for i, entry := range dependents {
			dependent, ok := entry.(map[string]any)
			if !ok {
				return upgraded, fmt.Errorf("image variable %v: dependent %d must be an object", variable["id"], i)
			}
			if values, ok := dependent["values"].([]any); ok {
				upgraded.DroppedValues += len(values)
			}
			variableID, _ := dependent["variableId"].(string)
			if variableID == "" {
				continue
			}
			groups = append(groups, map[string]any{
				"variableValue": []any{
					map[string]any{
						"id":        variableID,
						"type":      string(RefList),
						"transform": []any{},
					},
				},
			})
		}
		variable["dependentGroup"] = groups
		upgraded.Variables++
	}
	return upgraded, nil
}
