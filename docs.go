// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// capstore (persistence for an OIDC provider's records) provides the storage
// adapter an identity provider uses to keep sessions, authorization codes,
// tokens, grants and interactions in a document database.
//
// The store package holds the per record type Adapter, the Registry of
// adapters and the development bootstrap Sweeper.  The documents themselves
// live in a store.Backend: store/memory for tests and development,
// store/leveldb for a persistent single node store.  The account package
// provides the development account registry and the capstore command
// maintains a store from the shell.
package capstore
