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

func TestRegionalSATB_FieldWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("field")
    obj := b.Param(ir.NonNullStamp(fx.node))
    val := b.Param(ir.NonNullStamp(fx.reg.Object()))
    w := b.WriteField(obj, fx.next, val)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)
    require.Len(t, barriers(g), 2, dump(g))

    /* the old value is loaded and logged before the store */
    pre, ok := g.Node(g.Predecessor(w)).(*ir.PreWrite)
    require.True(t, ok, dump(g))
    assert.True(t, pre.DoLoad)
    assert.Equal(t, ir.NoNode, pre.Expected)
    assert.False(t, pre.NullCheck)
    assert.Equal(t, g.Access(w).Address(), pre.Addr)

    /* the store is recorded through the object base */
    post, ok := g.Node(g.Next(w)).(*ir.PostWrite)
    require.True(t, ok, dump(g))
    assert.Equal(t, obj, post.Base)
    assert.False(t, post.Precise)
    assert.Equal(t, val, post.Value)
}

func TestRegionalSATB_InitWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("init")
    obj := b.Param(ir.NonNullStamp(fx.node))
    val := b.Param(ir.NonNullStamp(fx.reg.Object()))
    w := b.InitField(obj, fx.next, val)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)
    assert.Equal(t, 0, countBarriers(g, ir.PreBarrier), dump(g))
    assert.Equal(t, 1, countBarriers(g, ir.PostBarrier), dump(g))
    assert.IsType(t, new(ir.PostWrite), g.Node(g.Next(w)))
}

func TestRegionalSATB_ArrayAndUnknownWrites(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("precise")
    arr := b.Param(ir.NonNullStamp(fx.arr))
    unk := b.Param(ir.ObjectStamp(nil))
    val := b.Param(ir.NonNullStamp(fx.reg.Object()))
    w1 := b.WriteArray(arr, meta.Object, b.Int(1), val)
    w2 := b.Write(b.Address(unk, b.Long(16)), ir.AnyLocation, val)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)
    for _, w := range []ir.ID { w1, w2 } {
        post, ok := g.Node(g.Next(w)).(*ir.PostWrite)
        require.True(t, ok, dump(g))
        assert.True(t, post.Precise)
        assert.Equal(t, ir.NoNode, post.Base)
        assert.IsType(t, new(ir.PreWrite), g.Node(g.Predecessor(w)))
    }
}

func TestRegionalSATB_NoKeepaliveWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("clear")
    ref := b.Param(ir.NonNullStamp(fx.reg.ReferenceType()))
    val := b.Param(ir.NonNullStamp(fx.reg.Object()))
    w := b.Decide(b.WriteField(ref, fx.reg.ReferentField(), val), ir.BarrierNoKeepaliveWrite)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)
    assert.Equal(t, 0, countBarriers(g, ir.PreBarrier), dump(g))
    post, ok := g.Node(g.Next(w)).(*ir.PostWrite)
    require.True(t, ok, dump(g))
    assert.True(t, post.Precise)
}

func TestRegionalSATB_NullWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("null")
    obj := b.Param(ir.NonNullStamp(fx.node))
    w := b.WriteField(obj, fx.next, b.Null())
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)
    assert.IsType(t, new(ir.PreWrite), g.Node(g.Predecessor(w)))
    assert.Equal(t, 0, countBarriers(g, ir.PostBarrier), dump(g))
}

func TestRegionalSATB_AtomicWrites(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("atomics")
    obj := b.Param(ir.NonNullStamp(fx.node))
    exp := b.Param(ir.ObjectStamp(nil))
    val := b.Param(ir.ObjectStamp(nil))
    cas := b.CAS(b.FieldAddress(obj, fx.next), ir.FieldLocation(fx.next), exp, val)
    xchg := b.NullCheck(b.Xchg(b.FieldAddress(obj, fx.next), ir.FieldLocation(fx.next), val))
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)

    /* CAS logs the expected value */
    pre, ok := g.Node(g.Predecessor(cas)).(*ir.PreWrite)
    require.True(t, ok, dump(g))
    assert.False(t, pre.DoLoad)
    assert.Equal(t, exp, pre.Expected)

    /* exchange loads the old value, and takes over the null check */
    pre, ok = g.Node(g.Predecessor(xchg)).(*ir.PreWrite)
    require.True(t, ok, dump(g))
    assert.True(t, pre.DoLoad)
    assert.True(t, pre.NullCheck)
    assert.False(t, g.Access(xchg).UsedAsNullCheck())
    assert.Equal(t, 2, countBarriers(g, ir.PostBarrier))
}

func TestRegionalSATB_MalformedPreBarrier(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("cas-nullcheck")
    obj := b.Param(ir.NonNullStamp(fx.node))
    cas := b.NullCheck(b.CAS(b.FieldAddress(obj, fx.next), ir.FieldLocation(fx.next), b.Null(), b.Param(ir.ObjectStamp(nil))))
    b.Return(ir.NoNode)
    g := b.Graph()
    p := NewRegionalSATB(fx.reg, false)
    f := catchFault(func() { fx.run(p, g) })
    require.NotNil(t, f)
    assert.Equal(t, ir.InvariantViolation, f.Kind)
    assert.Equal(t, "satb", f.Policy)
    assert.Contains(t, f.Reason, "null check")

    /* the load flag must agree with the expected value */
    f = catchFault(func() { p.newPreWrite(g, cas, ir.NoNode, false, false) })
    require.NotNil(t, f)
    assert.Contains(t, f.Reason, "malformed pre barrier")
    f = catchFault(func() { p.newPreWrite(g, cas, obj, true, false) })
    require.NotNil(t, f)
    assert.Contains(t, f.Reason, "malformed pre barrier")
}

func TestRegionalSATB_ReferentRead(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("referent")
    ref := b.Param(ir.NonNullStamp(fx.reg.ReferenceType()))
    obj := b.Param(ir.NonNullStamp(fx.node))
    r1 := b.ReadField(ref, fx.reg.ReferentField())
    r2 := b.ReadField(obj, fx.next)
    b.Return(r1)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)
    assert.Equal(t, ir.BarrierReferenceGet, g.Access(r1).BarrierType())
    assert.Equal(t, ir.BarrierNone, g.Access(r2).BarrierType())

    /* a single keep-alive barrier after the read */
    require.Len(t, barriers(g), 1, dump(g))
    rr, ok := g.Node(g.Next(r1)).(*ir.ReferentRead)
    require.True(t, ok, dump(g))
    assert.Equal(t, r1, rr.Expected)
    assert.Equal(t, g.Access(r1).Address(), rr.Addr)
    assert.Equal(t, ir.PreBarrier, rr.Kind())
}

func TestRegionalSATB_UnknownRead(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("unsafe")
    unk := b.Param(ir.ObjectStamp(nil))
    obj := b.Param(ir.NonNullStamp(fx.reg.Object()))
    node := b.Param(ir.NonNullStamp(fx.node))
    off := b.Param(ir.PrimitiveStamp(meta.Long))
    r1 := b.Read(b.Address(unk, b.Long(16)), ir.AnyLocation, ir.ObjectStamp(nil))
    r2 := b.Read(b.Address(unk, b.Long(24)), ir.AnyLocation, ir.ObjectStamp(nil))
    r3 := b.Read(b.Address(obj, off), ir.OffHeapLocation, ir.ObjectStamp(nil))
    r4 := b.Read(b.Address(node, b.Long(16)), ir.AnyLocation, ir.ObjectStamp(nil))
    r5 := b.Read(b.Address(unk, b.Long(16)), ir.AnyLocation, ir.PrimitiveStamp(meta.Long))
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)
    assert.Equal(t, ir.BarrierUnknown, g.Access(r1).BarrierType())
    assert.Equal(t, ir.BarrierNone, g.Access(r2).BarrierType())
    assert.Equal(t, ir.BarrierUnknown, g.Access(r3).BarrierType())
    assert.Equal(t, ir.BarrierNone, g.Access(r4).BarrierType())
    assert.Equal(t, ir.BarrierNone, g.Access(r5).BarrierType())
    assert.IsType(t, new(ir.ReferentRead), g.Node(g.Next(r1)))
    assert.IsType(t, new(ir.ReferentRead), g.Node(g.Next(r3)))
    assert.Len(t, barriers(g), 2)
}

func TestRegionalSATB_RangeWrite(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("range")
    arr := b.Param(ir.NonNullStamp(fx.arr))
    n := b.Param(ir.PrimitiveStamp(meta.Int))
    r1 := b.ArrayCopy(b.ArrayAddress(arr, meta.Object, b.Int(0)), n, meta.Object, false)
    r2 := b.ArrayCopy(b.ArrayAddress(arr, meta.Object, b.Int(0)), n, meta.Object, true)
    b.Return(ir.NoNode)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, false), g)

    /* both sides for an overwrite */
    pre, ok := g.Node(g.Predecessor(r1)).(*ir.RangePreWrite)
    require.True(t, ok, dump(g))
    assert.Equal(t, n, pre.Length)
    assert.IsType(t, new(ir.RangePostWrite), g.Node(g.Next(r1)))

    /* only the post side for an initialization */
    assert.IsType(t, new(ir.RangePostWrite), g.Node(g.Next(r2)))
    assert.IsType(t, new(ir.RangePostWrite), g.Node(g.Predecessor(r2)))
    assert.Len(t, barriers(g), 3)
}

func TestRegionalSATB_DeferInitBarriers(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("defer")
    val := b.Param(ir.NonNullStamp(fx.reg.Object()))
    obj := b.New(fx.node)
    b.InitField(obj, fx.next, val)
    w := b.WriteField(obj, fx.next, val)
    b.Return(obj)
    g := b.Graph()
    fx.run(NewRegionalSATB(fx.reg, true), g)
    assert.Len(t, barriers(g), 2, dump(g))
    assert.IsType(t, new(ir.PreWrite), g.Node(g.Predecessor(w)))
    assert.IsType(t, new(ir.PostWrite), g.Node(g.Next(w)))
}

func TestRegionalSATB_Idempotent(t *testing.T) {
    fx := newFixture()
    b := ir.NewBuilder("idempotent")
    obj := b.Param(ir.NonNullStamp(fx.node))
    ref := b.Param(ir.NonNullStamp(fx.reg.ReferenceType()))
    arr := b.Param(ir.NonNullStamp(fx.arr))
    val := b.Param(ir.ObjectStamp(nil))
    w1 := b.NullCheck(b.WriteField(obj, fx.next, val))
    w2 := b.WriteField(obj, fx.next, val)
    r1 := b.ReadField(ref, fx.reg.ReferentField())
    r2 := b.ArrayCopy(b.ArrayAddress(arr, meta.Object, b.Int(0)), b.Int(4), meta.Object, false)
    b.Return(ir.NoNode)
    g := b.Graph()
    p := NewRegionalSATB(fx.reg, false)
    fx.run(p, g)
    n := g.Len()
    require.Len(t, barriers(g), 7, dump(g))

    /* every barrier is recognized */
    for _, id := range []ir.ID { w1, w2, r2 } {
        assert.True(t, p.IsMatchingBarrier(g, id, g.Node(g.Predecessor(id)).(ir.Barrier)))
        assert.True(t, p.IsMatchingBarrier(g, id, g.Node(g.Next(id)).(ir.Barrier)))
    }
    assert.True(t, p.IsMatchingBarrier(g, r1, g.Node(g.Next(r1)).(ir.Barrier)))
    assert.False(t, p.IsMatchingBarrier(g, w2, g.Node(g.Next(r1)).(ir.Barrier)))

    /* adding them again changes nothing */
    for _, id := range []ir.ID { w1, w2, r1, r2 } {
        p.AddBarriers(g, id)
    }
    fx.run(p, g)
    assert.Equal(t, n, g.Len())
    assert.Len(t, barriers(g), 7)
}
