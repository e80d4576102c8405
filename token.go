// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package ioreactor

// Token is the stable handle identifying one registered socket inside the
// reactor's slab. It is assigned on insertion and reused only after the
// slab entry it named has been removed.
type Token uint32
