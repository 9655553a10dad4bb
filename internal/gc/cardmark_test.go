/*
 * Copyright 2022 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gc

import (
    `testing`

    `github.com/cloudwego/mbarrier/ir`
    `github.com/cloudwego/mbarrier/meta`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

func TestCardMarking_FieldWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("field")
    obj := b.Param(ir.NonNullStamp(fx.node))
    val := b.Param(ir.NonNullStamp(fx.reg.Object()))
    w := b.WriteField(obj, fx.next, val)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewCardMarking(fx.reg, false), g)

    /* exactly one imprecise card mark on the object */
    bs := barriers(g)
    require.Len(t, bs, 1, dump(g))
    pw, ok := bs[0].(*ir.PostWrite)
    require.True(t, ok)
    assert.Equal(t, ir.BarrierField, g.Access(w).BarrierType())
    assert.False(t, pw.Precise)
    assert.Equal(t, obj, pw.Base)
    assert.Equal(t, val, pw.Value)
    assert.Equal(t, g.Access(w).Address(), pw.Addr)
    assert.Equal(t, pw.Id(), g.Next(w))
    assert.Equal(t, ir.BaseDefault, pw.BaseStatus)
    assert.False(t, pw.Eliminated)
}

func TestCardMarking_ArrayWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("array")
    arr := b.Param(ir.NonNullStamp(fx.arr))
    val := b.Param(ir.NonNullStamp(fx.reg.Object()))
    w := b.WriteArray(arr, meta.Object, b.Int(3), val)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewCardMarking(fx.reg, false), g)

    /* exactly one precise card mark on the element */
    bs := barriers(g)
    require.Len(t, bs, 1, dump(g))
    pw, ok := bs[0].(*ir.PostWrite)
    require.True(t, ok)
    assert.Equal(t, ir.BarrierArray, g.Access(w).BarrierType())
    assert.True(t, pw.Precise)
    assert.Equal(t, ir.NoNode, pw.Base)
    assert.Equal(t, pw.Id(), g.Next(w))
}

func TestCardMarking_Elision(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("elision")
    obj := b.Param(ir.NonNullStamp(fx.node))
    nul := b.Param(ir.NullStamp())
    w1 := b.WriteField(obj, fx.next, b.Null())
    w2 := b.WriteField(obj, fx.val, b.Int(1))
    w3 := b.WriteField(obj, fx.next, nul)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewCardMarking(fx.reg, false), g)

    /* only the store that is not the null constant is marked */
    bs := barriers(g)
    require.Len(t, bs, 1, dump(g))
    assert.Equal(t, ir.BarrierField, g.Access(w1).BarrierType())
    assert.Equal(t, ir.BarrierNone, g.Access(w2).BarrierType())
    assert.Equal(t, bs[0].(*ir.PostWrite).Id(), g.Next(w3))
    assert.True(t, bs[0].(*ir.PostWrite).AlwaysNull)
}

func TestCardMarking_UnknownWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("unknown")
    obj := b.Param(ir.ObjectStamp(nil))
    val := b.Param(ir.ObjectStamp(nil))
    w := b.Write(b.Address(obj, b.Long(24)), ir.AnyLocation, val)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewCardMarking(fx.reg, false), g)
    require.Len(t, barriers(g), 1)
    assert.Equal(t, ir.BarrierUnknown, g.Access(w).BarrierType())
    assert.True(t, barriers(g)[0].(*ir.PostWrite).Precise)
}

func TestCardMarking_AtomicWrites(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("atomics")
    obj := b.Param(ir.NonNullStamp(fx.node))
    exp := b.Param(ir.ObjectStamp(nil))
    val := b.Param(ir.ObjectStamp(nil))
    cas := b.CAS(b.FieldAddress(obj, fx.next), ir.FieldLocation(fx.next), exp, val)
    xchg := b.Xchg(b.FieldAddress(obj, fx.next), ir.FieldLocation(fx.next), val)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewCardMarking(fx.reg, false), g)
    require.Len(t, barriers(g), 2, dump(g))
    assert.IsType(t, new(ir.PostWrite), g.Node(g.Next(cas)))
    assert.IsType(t, new(ir.PostWrite), g.Node(g.Next(xchg)))
    assert.Equal(t, obj, g.Node(g.Next(cas)).(*ir.PostWrite).Base)
}

func TestCardMarking_RangeWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("range")
    arr := b.Param(ir.NonNullStamp(fx.arr))
    obj := b.Param(ir.NonNullStamp(fx.node))
    n := b.Param(ir.PrimitiveStamp(meta.Int))
    r1 := b.ArrayCopy(b.ArrayAddress(arr, meta.Object, b.Int(0)), n, meta.Object, false)
    r2 := b.ArrayCopy(b.ArrayAddress(arr, meta.Object, b.Int(0)), b.Int(0), meta.Object, false)
    r3 := b.ArrayCopy(b.ArrayAddress(arr, meta.Int, b.Int(0)), n, meta.Int, false)
    r4 := b.ArrayCopy(b.Address(obj, b.Long(16)), n, meta.Object, false)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewCardMarking(fx.reg, false), g)
    require.Len(t, barriers(g), 2, dump(g))

    /* the object array gets a range barrier */
    rp, ok := g.Node(g.Next(r1)).(*ir.RangePostWrite)
    require.True(t, ok)
    assert.Equal(t, n, rp.Length)
    assert.Equal(t, 8, rp.Stride)

    /* empty and primitive ranges need nothing */
    assert.Equal(t, r3, g.Next(r2))
    assert.Equal(t, ir.BarrierNone, g.Access(r3).BarrierType())

    /* a destination that cannot be an array is marked through its base */
    pw, ok := g.Node(g.Next(r4)).(*ir.PostWrite)
    require.True(t, ok)
    assert.False(t, pw.Precise)
    assert.Equal(t, obj, pw.Base)
}

func TestCardMarking_DeferInitBarriers(t *testing.T) {
    fx := newFixture()
    build := func() *ir.Graph {
        b := ir.NewBuilder("defer")
        val := b.Param(ir.NonNullStamp(fx.reg.Object()))
        obj := b.New(fx.node)
        b.InitField(obj, fx.next, val)
        b.Return(obj)
        return b.Graph()
    }

    /* with elision */
    g := build()
    fx.run(NewCardMarking(fx.reg, true), g)
    assert.Empty(t, barriers(g))

    /* without elision */
    g = build()
    fx.run(NewCardMarking(fx.reg, false), g)
    assert.Len(t, barriers(g), 1)
}

func TestCardMarking_Idempotent(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("idempotent")
    obj := b.Param(ir.NonNullStamp(fx.node))
    arr := b.Param(ir.NonNullStamp(fx.arr))
    val := b.Param(ir.ObjectStamp(nil))
    w := b.WriteField(obj, fx.next, val)
    r := b.ArrayCopy(b.ArrayAddress(arr, meta.Object, b.Int(0)), b.Int(4), meta.Object, false)
    b.Return(ir.NoNode)
    g := b.Graph()
    p := NewCardMarking(fx.reg, false)
    fx.run(p, g)
    n := g.Len()
    require.Len(t, barriers(g), 2)
    assert.True(t, p.HasBarrier(g, w))
    assert.True(t, p.HasBarrier(g, r))

    /* adding them again changes nothing */
    p.AddBarriers(g, w)
    p.AddBarriers(g, r)
    fx.run(p, g)
    assert.Equal(t, n, g.Len())
    assert.Len(t, barriers(g), 2)
}

func TestCardMarking_HasBarrierShape(t *testing.T) {
    fx := newFixture()
    for name, stale := range map[string]func(obj ir.ID, addr ir.ID, val ir.ID, other ir.ID) *ir.PostWrite {
        "other-value" : func(obj ir.ID, addr ir.ID, _ ir.ID, other ir.ID) *ir.PostWrite { return &ir.PostWrite{Addr: addr, Value: other, Base: obj} },
        "other-base"  : func(_ ir.ID, addr ir.ID, val ir.ID, other ir.ID) *ir.PostWrite { return &ir.PostWrite{Addr: addr, Value: val, Base: other} },
        "precise"     : func(_ ir.ID, addr ir.ID, val ir.ID, _ ir.ID) *ir.PostWrite { return &ir.PostWrite{Addr: addr, Value: val, Base: ir.NoNode, Precise: true} },
    } {
        b := ir.NewBuilder(name)
        obj := b.Param(ir.NonNullStamp(fx.node))
        val := b.Param(ir.ObjectStamp(nil))
        other := b.Param(ir.NonNullStamp(fx.node))
        w := b.WriteField(obj, fx.next, val)
        b.Return(ir.NoNode)
        g := b.Graph()
        p := NewCardMarking(fx.reg, false)

        /* a neighbouring mark for something else does not count */
        g.Access(w).SetBarrierType(p.FieldWriteBarrierType(fx.next, meta.Object))
        g.AddAfterFixed(w, g.Add(stale(obj, g.Access(w).Address(), val, other)))
        require.False(t, p.HasBarrier(g, w), name)
        p.AddBarriers(g, w)
        require.Len(t, barriers(g), 2, name)

        /* the inserted mark is the matching one */
        pb, ok := g.Node(g.Next(w)).(*ir.PostWrite)
        require.True(t, ok, name)
        assert.Equal(t, val, pb.Value, name)
        assert.Equal(t, obj, pb.Base, name)
        assert.False(t, pb.Precise, name)
        assert.True(t, p.HasBarrier(g, w), name)
    }
}

func TestCardMarking_MissedCase(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("missed")
    obj := b.Param(ir.NonNullStamp(fx.node))
    r := b.Decide(b.ReadField(obj, fx.next), ir.BarrierRead)
    b.Return(ir.NoNode)
    g := b.Graph()
    f := catchFault(func() { fx.run(NewCardMarking(fx.reg, false), g) })
    require.NotNil(t, f)
    assert.Equal(t, ir.MissedCase, f.Kind)
    assert.Equal(t, "card", f.Policy)
    assert.Contains(t, f.Node, r.String())
    assert.Contains(t, f.Error(), "unexpected barrier type READ")
    assert.Contains(t, f.Detail(), "LoadStamp")

    /* referent encodings need nothing from a card table */
    b = ir.NewBuilder("referent")
    b.Decide(b.ReadField(b.Param(ir.NonNullStamp(fx.reg.ReferenceType())), fx.reg.ReferentField()), ir.BarrierWeakRefersTo)
    assert.NotPanics(t, func() { fx.run(NewCardMarking(fx.reg, false), b.Graph()) })

    /* init only barriers cannot reach a card table */
    b = ir.NewBuilder("post-init")
    b.Decide(b.WriteField(b.Param(ir.NonNullStamp(fx.node)), fx.next, b.Param(ir.ObjectStamp(nil))), ir.BarrierPostInitWrite)
    f = catchFault(func() { fx.run(NewCardMarking(fx.reg, false), b.Graph()) })
    require.NotNil(t, f)
    assert.Equal(t, ir.MissedCase, f.Kind)
}
