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

/*
Package ledger implements the usage ledger for the LandmarkLens backend:
the free daily quota, the paid credit balance, and the purchase
idempotency markers, all stored in a shared Redis instance.

# State

Three kinds of keys, all plain strings:

	quota:free:{userID}:{YYYY-MM-DD}   free classifications used today
	quota:credits:{userID}             purchased, unspent credits
	purchase:token:{purchaseToken}     idempotency marker per Play receipt

Free counters are namespaced by UTC calendar day, so the free allowance
resets at UTC midnight with no scheduled job: a new day simply reads a
fresh (absent, therefore zero) counter. Counters additionally carry a
short TTL purely to bound key growth; expiry is housekeeping, not the
reset mechanism.

# Atomicity

Every decision that reads and then mutates quota state runs as a single
Lua script, so two concurrent requests from the same user can never both
be granted the last free use or the last credit, and a purchase token can
never be credited twice. The application process holds no quota state in
memory, which keeps horizontal scaling trivially safe.

# Failure policy

If Redis cannot be reached the gate fails closed: TryConsume returns
ErrStoreUnavailable and the request must be denied, never allowed.
CreditIfNewPurchase likewise surfaces the error without granting credits;
the client may retry verification later, which stays safe because of the
idempotency marker.
*/
package ledger
