package fetchstrategy

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// keyByName maps the spec's "press" action key names to go-rod's key codes.
var keyByName = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Space":      input.Space,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
}

const actionTimeout = 10 * time.Second

// executeActions runs the ordered list of browser actions on the page.
//
// Grounded on scraper/actions.go's executeActions/executeSingleAction,
// generalized from that file's wait|click|scroll|execute_js vocabulary to
// spec's full wait|click|scroll|type|fill|select|press|hover|
// waitForSelector|screenshot set.
func executeActions(ctx context.Context, page *rod.Page, actions []Action) error {
	for i, action := range actions {
		if err := executeSingleAction(ctx, page, action); err != nil {
			return NewFetchError(ErrNetwork, fmt.Sprintf("action %d (%s) failed after %d completed", i, action.Type, i), err)
		}
	}
	return nil
}

func executeSingleAction(ctx context.Context, page *rod.Page, action Action) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()
	p := page.Context(actionCtx)

	switch action.Type {
	case "wait":
		return execWait(p, action)
	case "waitForSelector":
		if action.Selector == "" {
			return fmt.Errorf("waitForSelector action requires a selector")
		}
		return p.WaitElementsMoreThan(action.Selector, 0)
	case "click":
		return execClick(p, action)
	case "hover":
		return execHover(p, action)
	case "scroll":
		return execScroll(p, action)
	case "type":
		return execType(p, action)
	case "fill":
		return execFill(p, action)
	case "select":
		return execSelect(p, action)
	case "press":
		return execPress(p, action)
	case "screenshot":
		// handled by the caller after all actions complete; no-op marker.
		return nil
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

func execWait(p *rod.Page, action Action) error {
	if action.Selector != "" {
		return p.WaitElementsMoreThan(action.Selector, 0)
	}
	if action.Milliseconds > 0 {
		d := time.Duration(action.Milliseconds) * time.Millisecond
		select {
		case <-time.After(d):
			return nil
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		}
	}
	return nil
}

func execClick(p *rod.Page, action Action) error {
	if action.Selector == "" {
		return fmt.Errorf("click action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func execHover(p *rod.Page, action Action) error {
	if action.Selector == "" {
		return fmt.Errorf("hover action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Hover()
}

func execScroll(p *rod.Page, action Action) error {
	amount := action.Amount
	if amount <= 0 {
		amount = 1
	}
	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	viewportHeight := res.Value.Int()

	for i := 0; i < amount; i++ {
		scrollDelta := viewportHeight
		if action.Direction == "up" {
			scrollDelta = -viewportHeight
		}
		if err := p.Mouse.Scroll(0, float64(scrollDelta), 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func execType(p *rod.Page, action Action) error {
	if action.Selector == "" {
		return fmt.Errorf("type action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Input(action.Value)
}

func execFill(p *rod.Page, action Action) error {
	if action.Selector == "" {
		return fmt.Errorf("fill action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(action.Value)
}

func execSelect(p *rod.Page, action Action) error {
	if action.Selector == "" {
		return fmt.Errorf("select action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Select([]string{action.Value}, true, rod.SelectorTypeText)
}

func execPress(p *rod.Page, action Action) error {
	if action.Value == "" {
		return fmt.Errorf("press action requires a value (key name)")
	}
	key, ok := keyByName[action.Value]
	if !ok {
		return fmt.Errorf("unknown key %q", action.Value)
	}
	return p.Keyboard.Type(key)
}
