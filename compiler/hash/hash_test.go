package hash

import "testing"

func TestSymbolIDs(t *testing.T) {
	a := Symbol("main.lt", 10, "")
	if a != Symbol("main.lt", 10, "") {
		t.Error("same location produced different ids")
	}
	cases := []ID{
		Symbol("main.lt", 11, ""),
		Symbol("other.lt", 10, ""),
		Symbol("main.lt", 10, "closure#1"),
	}
	for i, c := range cases {
		if c == a {
			t.Errorf("case %d: id collides with base symbol", i)
		}
	}
}

func TestInstanceIDsContentAddressed(t *testing.T) {
	intID := TypeInstance(1, nil)
	floatID := TypeInstance(2, nil)

	boxInt := TypeInstance(5, []ID{intID})
	if boxInt != TypeInstance(5, []ID{TypeInstance(1, nil)}) {
		t.Error("Box<int> not stable")
	}
	if boxInt == TypeInstance(5, []ID{floatID}) {
		t.Error("Box<int> and Box<float> share an id")
	}
	if boxInt == FuncInstance(5, ID{}, []ID{intID}) {
		t.Error("type and function instance ids collide")
	}
	if FuncInstance(3, boxInt, nil) == FuncInstance(3, ID{}, nil) {
		t.Error("owner instance ignored in function id")
	}
}

func TestIDRendering(t *testing.T) {
	id := Symbol("x", 0, "")
	if len(id.String()) != 64 {
		t.Errorf("String() len = %d, want 64", len(id.String()))
	}
	if len(id.Short()) != 16 {
		t.Errorf("Short() len = %d, want 16", len(id.Short()))
	}
	if id.IsZero() || !(ID{}).IsZero() {
		t.Error("IsZero wrong")
	}
}

func TestFunctionTypeIDs(t *testing.T) {
	intID := TypeInstance(1, nil)
	f := FunctionType([]ID{intID}, intID)
	if f != FunctionType([]ID{TypeInstance(1, nil)}, intID) {
		t.Error("function type id not stable")
	}
	if f == FunctionType([]ID{intID}, ID{}) {
		t.Error("return type ignored")
	}
	if f == FuncInstance(0, intID, []ID{intID}) {
		t.Error("function type collides with function instance")
	}
}
