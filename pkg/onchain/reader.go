// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package onchain declares the boundary between the meta document this
// module produces and a live chain: given a pkg/layout.SlotInfo, a
// StorageReader fetches the raw storage word so pkg/layout.ReadValue can
// decode it. Fetching storage over RPC, caching proofs, and reconciling a
// meta document against live state are downstream concerns; this
// package stops at the interface.
package onchain

import "context"

// StorageReader fetches one 32-byte storage word at slot for addr.
// Implementations (an RPC client, a local state DB, a recorded fixture)
// live outside this module.
type StorageReader interface {
	StorageAt(ctx context.Context, addr string, slot [32]byte) ([32]byte, error)
}
