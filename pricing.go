package proxyfox

import "context"

// ResolvePricingRule looks up a resource and one of its actions and returns
// the pricing rule for the pair.
func ResolvePricingRule(ctx context.Context, catalog Catalog, resourceID, actionID string) (*PricingRule, error) {
	resource, err := catalog.ResolveResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, NewResourceNotFound(resourceID)
	}

	action, ok := resource.FindAction(actionID)
	if !ok {
		return nil, NewPaymentError(ErrCodeActionNotFound, "Tool not found", map[string]interface{}{
			"resource": resourceID,
			"action":   actionID,
		})
	}

	return &PricingRule{
		ResourceID:   resource.ID,
		ActionID:     action.ID,
		Recipient:    resource.Recipient,
		Price:        action.Price,
		UpstreamBase: resource.UpstreamBase,
		Network:      resource.Network,
	}, nil
}

// NewResourceNotFound is the error catalogs return for unknown resource ids.
func NewResourceNotFound(id string) *PaymentError {
	return NewPaymentError(ErrCodeResourceNotFound, "Server not found", map[string]interface{}{
		"resource": id,
	})
}
