// Copyright 2025 LandmarkLens
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package billing verifies Google Play in-app purchases through the
// Android Publisher API. It owns no quota state: the ledger package
// decides whether a verified purchase actually grants credits.
package billing

import (
	"context"
	"fmt"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// purchaseStatePurchased is the ProductPurchase.PurchaseState value for
// a completed purchase (1 = canceled, 2 = pending).
const purchaseStatePurchased = 0

// Verifier checks purchase tokens against the Play Developer API and
// consumes completed purchases so the product can be bought again.
type Verifier struct {
	svc         *androidpublisher.Service
	packageName string
}

// NewVerifier creates a Verifier for the given Android package.
// Credentials come from the supplied client options (service-account
// JSON) or Application Default Credentials when none are given.
func NewVerifier(ctx context.Context, packageName string, opts ...option.ClientOption) (*Verifier, error) {
	if packageName == "" {
		return nil, fmt.Errorf("billing: package name is required")
	}

	svc, err := androidpublisher.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("billing: creating publisher service: %w", err)
	}

	return &Verifier{svc: svc, packageName: packageName}, nil
}

// VerifyAndConsumePurchase confirms that purchaseToken belongs to a
// completed purchase of productID and marks it consumed on the Play
// side. It returns completed=false (with nil error) for canceled or
// pending purchases — the caller must not credit anything in that case.
//
// Consumption runs before any crediting so a token can be repurchased;
// if it fails the whole call fails and the client retries verification,
// which stays safe because crediting is idempotent per token.
func (v *Verifier) VerifyAndConsumePurchase(ctx context.Context, productID, purchaseToken string) (bool, error) {
	if productID == "" || purchaseToken == "" {
		return false, fmt.Errorf("billing: product ID and purchase token are required")
	}

	purchase, err := v.svc.Purchases.Products.Get(v.packageName, productID, purchaseToken).
		Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("billing: fetching purchase: %w", err)
	}

	if purchase.PurchaseState != purchaseStatePurchased {
		return false, nil
	}

	if err := v.svc.Purchases.Products.Consume(v.packageName, productID, purchaseToken).
		Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("billing: consuming purchase: %w", err)
	}

	return true, nil
}
