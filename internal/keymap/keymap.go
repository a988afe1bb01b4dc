package keymap

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/kapitanov/chip8vm/internal/vm"
)

// Layout maps physical keys, identified by the character they type, to
// logical keypad keys.
type Layout struct {
	Name string
	keys map[rune]vm.Key
}

// Physical                Logical
// ================        =================
// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
// | q | w | e | r |       | 4 | 5 | 6 | D |
// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
// | z | x | c | v |       | A | 0 | B | F |
// ================        =================
var Qwerty = newLayout("qwerty", [4]string{"1234", "qwer", "asdf", "zxcv"})

// Qwertz is Qwerty with Y in place of Z, so the bottom row stays put on
// German keyboards.
var Qwertz = newLayout("qwertz", [4]string{"1234", "qwer", "asdf", "yxcv"})

var layouts = map[string]Layout{
	Qwerty.Name: Qwerty,
	Qwertz.Name: Qwertz,
}

var keypad = [4][4]vm.Key{
	{vm.Key1, vm.Key2, vm.Key3, vm.KeyC},
	{vm.Key4, vm.Key5, vm.Key6, vm.KeyD},
	{vm.Key7, vm.Key8, vm.Key9, vm.KeyE},
	{vm.KeyA, vm.Key0, vm.KeyB, vm.KeyF},
}

func newLayout(name string, rows [4]string) Layout {
	l := Layout{Name: name, keys: make(map[rune]vm.Key, vm.KeyCount)}
	for r, row := range rows {
		for c, ch := range []rune(row) {
			l.keys[ch] = keypad[r][c]
		}
	}
	return l
}

// Parse returns the layout with the given name.
func Parse(name string) (Layout, error) {
	l, ok := layouts[strings.ToLower(name)]
	if !ok {
		return Layout{}, fmt.Errorf("unknown keymap %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return l, nil
}

// Names lists the known layouts.
func Names() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the logical key for a typed character. Case is ignored.
func (l Layout) Lookup(r rune) (vm.Key, bool) {
	key, ok := l.keys[unicode.ToLower(r)]
	return key, ok
}
