package emit

import (
	"strings"

	"github.com/chazu/lotus/compiler/instance"
)

// Host imports, in the order they appear in every module.
var imports = []string{
	`(import "env" "log_int" (func $log_int (param i32)))`,
	`(import "env" "log_float" (func $log_float (param f32)))`,
	`(import "env" "log_string" (func $log_string (param i32)))`,
}

// retainSig is the signature of closure retain companions: environment in,
// nothing out. The runtime header calls through it.
var retainSig = instance.SigKey([]instance.Repr{instance.ReprI32}, instance.ReprNone)

// runtime is the fixed part of every module: the bump allocator, object
// and array constructors, reference counting, element access and string
// operations. Objects start with the vtable base at 0 and the reference
// count at 4; arrays keep their length at 8 and elements from 12. A string
// is its byte length followed by the bytes.
const runtime = `
(func $lotus_alloc (param $size i32) (result i32)
  (local $p i32)
  global.get $heap
  local.set $p
  global.get $heap
  local.get $size
  i32.add
  i32.const 7
  i32.add
  i32.const -8
  i32.and
  global.set $heap
  block
    global.get $heap
    memory.size
    i32.const 16
    i32.shl
    i32.le_u
    br_if 0
    global.get $heap
    memory.size
    i32.const 16
    i32.shl
    i32.sub
    i32.const 65535
    i32.add
    i32.const 16
    i32.shr_u
    memory.grow
    i32.const -1
    i32.ne
    br_if 0
    unreachable
  end
  local.get $p)
(func $lotus_new (param $size i32) (param $vtable i32) (result i32)
  (local $p i32)
  local.get $size
  call $lotus_alloc
  local.tee $p
  local.get $vtable
  i32.store offset=0
  local.get $p
  i32.const 1
  i32.store offset=4
  local.get $p)
(func $lotus_retain (param $obj i32)
  local.get $obj
  local.get $obj
  i32.load offset=4
  i32.const 1
  i32.add
  i32.store offset=4)
(func $lotus_array_new (param $len i32) (result i32)
  (local $p i32)
  local.get $len
  i32.const 4
  i32.mul
  i32.const 12
  i32.add
  i32.const -1
  call $lotus_new
  local.tee $p
  local.get $len
  i32.store offset=8
  local.get $p)
(func $lotus_elem (param $arr i32) (param $i i32) (result i32)
  local.get $i
  local.get $arr
  i32.load offset=8
  i32.ge_u
  if
    unreachable
  end
  local.get $arr
  local.get $i
  i32.const 4
  i32.mul
  i32.add
  i32.const 12
  i32.add)
(func $lotus_array_set_i32 (param $arr i32) (param $i i32) (param $v i32)
  local.get $arr
  local.get $i
  call $lotus_elem
  local.get $v
  i32.store)
(func $lotus_array_set_f32 (param $arr i32) (param $i i32) (param $v f32)
  local.get $arr
  local.get $i
  call $lotus_elem
  local.get $v
  f32.store)
(func $lotus_closure_new (param $env i32) (param $fn i32) (param $retain i32) (result i32)
  (local $p i32)
  i32.const 12
  call $lotus_alloc
  local.tee $p
  local.get $fn
  i32.store offset=0
  local.get $p
  local.get $env
  i32.store offset=4
  local.get $p
  local.get $retain
  i32.store offset=8
  local.get $p)
(func $lotus_string_concat (param $a i32) (param $b i32) (result i32)
  (local $la i32)
  (local $lb i32)
  (local $p i32)
  local.get $a
  i32.load
  local.set $la
  local.get $b
  i32.load
  local.set $lb
  local.get $la
  local.get $lb
  i32.add
  i32.const 4
  i32.add
  call $lotus_alloc
  local.tee $p
  local.get $la
  local.get $lb
  i32.add
  i32.store
  local.get $p
  i32.const 4
  i32.add
  local.get $a
  i32.const 4
  i32.add
  local.get $la
  memory.copy
  local.get $p
  i32.const 4
  i32.add
  local.get $la
  i32.add
  local.get $b
  i32.const 4
  i32.add
  local.get $lb
  memory.copy
  local.get $p)
(func $lotus_string_eq (param $a i32) (param $b i32) (result i32)
  (local $n i32)
  (local $i i32)
  local.get $a
  local.get $b
  i32.eq
  if
    i32.const 1
    return
  end
  local.get $a
  i32.load
  local.tee $n
  local.get $b
  i32.load
  i32.ne
  if
    i32.const 0
    return
  end
  block
    loop
      local.get $i
      local.get $n
      i32.ge_u
      br_if 1
      local.get $a
      local.get $i
      i32.add
      i32.load8_u offset=4
      local.get $b
      local.get $i
      i32.add
      i32.load8_u offset=4
      i32.ne
      if
        i32.const 0
        return
      end
      local.get $i
      i32.const 1
      i32.add
      local.set $i
      br 0
    end
  end
  i32.const 1)
(func $lotus_retain_closure (param $c i32)
  local.get $c
  i32.load offset=4
  local.get $c
  i32.load offset=8
  call_indirect (type $sig_RETAIN))
`

// writeRuntime writes the runtime helpers at the current indentation.
func writeRuntime(w *writer) {
	text := strings.ReplaceAll(runtime, "RETAIN", retainSig)
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		w.line("%s", l)
	}
}
