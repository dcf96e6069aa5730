package reporting

import (
	"fmt"
	"html/template"
	"sync"
)

type TemplateManager struct {
	templates map[string]*template.Template
	mu        sync.RWMutex
}

func NewTemplateManager() *TemplateManager {
	return &TemplateManager{
		templates: make(map[string]*template.Template),
	}
}

func (tm *TemplateManager) Register(name, tpl string, funcs template.FuncMap) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t := template.New(name)
	if funcs != nil {
		t = t.Funcs(funcs)
	}
	parsed, err := t.Parse(tpl)
	if err != nil {
		return fmt.Errorf("parse %q: %w", name, err)
	}
	tm.templates[name] = parsed
	return nil
}

func (tm *TemplateManager) Get(name string) (*template.Template, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	t, ok := tm.templates[name]
	return t, ok
}

func (tm *TemplateManager) MustGet(name string) *template.Template {
	if t, ok := tm.Get(name); ok {
		return t
	}
	panic("template not found: " + name)
}
