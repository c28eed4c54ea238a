// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package store provides the persistence adapter an OIDC identity provider
// uses to durably store its grants, sessions and tokens.
//
// An Adapter is created per record type ("Session", "AccessToken", "Grant",
// ...) and stores opaque payloads keyed by id inside a namespace derived from
// the record type.  Payloads are never interpreted beyond the userCode, uid and
// grantId fields used for lookups and bulk revocation.
//
// Records may carry an expiry, which is enforced by the Backend's TTL
// mechanism, and may be consumed, which hides them from every Find operation
// while leaving them in place until they are destroyed.
//
// Backends are pluggable.  See the memory and leveldb packages for the
// implementations shipped with this module and the storetest package for the
// contract every Backend must satisfy.
package store
