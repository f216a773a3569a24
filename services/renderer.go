package services

import (
	"fmt"
	"regexp"
	"strings"

	"hostpilot-server/models"
)

// RenderContext is the closed set of roots a template may reference. The
// renderer rejects unknown roots and unknown leaves the same way: the token
// is left unchanged in the output.
type RenderContext struct {
	Reservation map[string]interface{}
	Property    map[string]interface{}
	Guest       map[string]interface{}
	Owner       map[string]interface{}
	Listing     map[string]interface{} // flattened booking settings / pricing / descriptions
	Variables   map[string]interface{} // organization-defined
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*\}\}`)

// Render substitutes {{ path }} tokens from the context. Unresolvable
// tokens pass through untouched; rendering never fails.
func Render(templateText string, ctx *RenderContext) string {
	if templateText == "" || ctx == nil {
		return templateText
	}
	return tokenPattern.ReplaceAllStringFunc(templateText, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]
		value, ok := resolve(ctx, strings.Split(path, "."))
		if !ok {
			return token
		}
		return value
	})
}

func resolve(ctx *RenderContext, path []string) (string, bool) {
	var node interface{}
	switch path[0] {
	case "reservation":
		node = ctx.Reservation
	case "property":
		node = ctx.Property
	case "guest":
		node = ctx.Guest
	case "owner":
		node = ctx.Owner
	case "listing":
		node = ctx.Listing
	case "variables":
		node = ctx.Variables
	default:
		return "", false
	}

	for _, key := range path[1:] {
		m, ok := node.(map[string]interface{})
		if !ok {
			return "", false
		}
		node, ok = m[key]
		if !ok {
			return "", false
		}
	}

	if node == nil {
		return "", false
	}
	if m, ok := node.(map[string]interface{}); ok {
		// a bare root or interior node is not a value
		_ = m
		return "", false
	}
	return fmt.Sprint(node), true
}

// BuildRenderContext assembles the per-firing context from the reservation
// graph plus the organization's custom variables.
func BuildRenderContext(res *models.Reservation, prop *models.Property, guest *models.User, owner *models.User, variables []models.Variable) *RenderContext {
	ctx := &RenderContext{
		Reservation: map[string]interface{}{},
		Property:    map[string]interface{}{},
		Guest:       map[string]interface{}{},
		Owner:       map[string]interface{}{},
		Listing:     map[string]interface{}{},
		Variables:   map[string]interface{}{},
	}

	if res != nil {
		ctx.Reservation = map[string]interface{}{
			"confirmation_code": res.ConfirmationCode,
			"start_date":        res.StartDate.Format("Jan 2, 2006"),
			"end_date":          res.EndDate.Format("Jan 2, 2006"),
			"status":            res.Status,
			"source":            res.Source,
			"adults":            res.Adults,
			"children":          res.Children,
			"infants":           res.Infants,
			"base_total":        fmt.Sprintf("%.2f", res.BaseTotal),
			"price":             fmt.Sprintf("%.2f", res.Price),
			"currency":          res.Currency,
		}
		// blank codes should not render as empty values
		if res.ConfirmationCode == "" {
			delete(ctx.Reservation, "confirmation_code")
		}
	}
	if prop != nil {
		ctx.Property = map[string]interface{}{
			"title":     prop.Title,
			"address":   prop.AddressLine1,
			"city":      prop.City,
			"state":     prop.State,
			"zip":       prop.Zip,
			"time_zone": prop.TimeZone,
		}
		// Listing is the flat merge of booking settings the templates see.
		ctx.Listing = map[string]interface{}{
			"check_in_time":  prop.CheckInTime,
			"check_out_time": prop.CheckOutTime,
			"nightly_price":  fmt.Sprintf("%.2f", prop.NightlyPrice),
			"currency":       prop.Currency,
			"title":          prop.Title,
		}
	}
	if guest != nil {
		ctx.Guest = userContext(guest)
	}
	if owner != nil {
		ctx.Owner = userContext(owner)
	}
	for _, v := range variables {
		ctx.Variables[v.Name] = v.Value
	}
	return ctx
}

func userContext(u *models.User) map[string]interface{} {
	m := map[string]interface{}{
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"full_name":  u.FullName(),
		"email":      u.Email,
		"phone":      u.PhoneNumber,
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}
