package selector

import (
	"fmt"
	"strconv"
)

// Extra keys a caller must supply when opening a selector
const (
	ExtraShowHiddenApps = "SHOW_HIDDEN_APPS"
	ExtraCanRename      = "CAN_RENAME"
	ExtraSearchHint     = "SEARCH_HINT"
)

// Request holds the launch parameters of a selector session
type Request struct {
	ShowHidden bool   // Browse the hidden partition instead of the regular one
	CanRename  bool   // Expose rename commands
	SearchHint string // Shown in an empty search field
}

// ParseRequest builds a Request from caller extras. Every key is required;
// a selector must not start with guessed defaults.
func ParseRequest(extras map[string]string) (Request, error) {
	if extras == nil {
		return Request{}, fmt.Errorf("%w: no extras", ErrMissingParams)
	}

	showHidden, err := boolExtra(extras, ExtraShowHiddenApps)
	if err != nil {
		return Request{}, err
	}
	canRename, err := boolExtra(extras, ExtraCanRename)
	if err != nil {
		return Request{}, err
	}
	hint, ok := extras[ExtraSearchHint]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrMissingParams, ExtraSearchHint)
	}

	return Request{ShowHidden: showHidden, CanRename: canRename, SearchHint: hint}, nil
}

func boolExtra(extras map[string]string, key string) (bool, error) {
	raw, ok := extras[key]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissingParams, key)
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrMissingParams, key, raw)
	}
	return val, nil
}
