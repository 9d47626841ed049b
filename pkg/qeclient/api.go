package qeclient

import "fmt"

// ========================= high-level API =========================
//
// Фасад над Session + кодек + экстракторы: типовые последовательности
// вызовов. Своего состояния не держит — только хэндлы, выданные движком.

// Doc — открытый документ: сессия + его хэндл.
type Doc struct {
	s      *Session
	handle int
}

// Object — визуальный объект документа.
type Object struct {
	s      *Session
	handle int
	id     string
}

func (d *Doc) Handle() int    { return d.handle }
func (o *Object) Handle() int { return o.handle }
func (o *Object) ID() string  { return o.id }

// OpenDoc открывает документ на глобальном объекте (handle 0) и
// возвращает обёртку с его хэндлом.
func (s *Session) OpenDoc(docID string) (*Doc, error) {
	if docID == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrValidation)
	}
	res, err := s.Call("Global.OpenDoc", 0, OpenDocParams(docID))
	if err != nil {
		return nil, err
	}
	h, err := ExtractHandle(res)
	if err != nil {
		return nil, err
	}
	return &Doc{s: s, handle: h}, nil
}

// Sheets — список листов документа.
func (d *Doc) Sheets() ([]Sheet, error) {
	res, err := d.s.Call("Doc.GetObjects", d.handle, SheetListParams())
	if err != nil {
		return nil, err
	}
	return ExtractSheets(res), nil
}

// Object — хэндл визуального объекта по его id.
func (d *Doc) Object(objectID string) (*Object, error) {
	res, err := d.s.Call("Doc.GetObject", d.handle, GetObjectParams(objectID))
	if err != nil {
		return nil, err
	}
	h, err := ExtractHandle(res)
	if err != nil {
		return nil, err
	}
	return &Object{s: d.s, handle: h, id: objectID}, nil
}

// SheetObjects — дочерние объекты листа (через его layout).
func (d *Doc) SheetObjects(sheetID string) ([]ChildObject, error) {
	sheet, err := d.Object(sheetID)
	if err != nil {
		return nil, err
	}
	res, err := d.s.Call("GenericObject.GetLayout", sheet.handle, GetLayoutParams())
	if err != nil {
		return nil, err
	}
	return ExtractChildObjects(res), nil
}

// Layout — материализованное описание объекта.
func (o *Object) Layout() (Layout, error) {
	res, err := o.s.Call("GenericObject.GetLayout", o.handle, GetLayoutParams())
	if err != nil {
		return Layout{}, err
	}
	return ExtractLayout(res)
}

// HypercubeData листает гиперкуб окном window и склеивает страницы.
// Останавливается, когда движок вернул меньше строк, чем просили.
func (o *Object) HypercubeData(window Page) ([][]Cell, error) {
	if window.Height <= 0 || window.Width <= 0 {
		window = DefaultPage()
	}
	var all [][]Cell
	for {
		res, err := o.s.Call("GenericObject.GetHyperCubeData", o.handle,
			HypercubeDataParams("", window))
		if err != nil {
			return nil, err
		}
		rows := ExtractHypercubeData(res)
		all = append(all, rows...)
		if len(rows) < window.Height {
			return all, nil
		}
		window.Top += window.Height
	}
}

// Table — layout + данные + заголовки одной операцией.
func (o *Object) Table() (*FormattedHypercube, error) {
	layout, err := o.Layout()
	if err != nil {
		return nil, err
	}
	rows, err := o.HypercubeData(DefaultPage())
	if err != nil {
		return nil, err
	}
	fc := FormatHypercubeData(rows, layout)
	return &fc, nil
}

// SelectValues применяет выборку значений к полю. Возвращает флаг
// движка «выборка применена».
func (d *Doc) SelectValues(field string, values ...string) (bool, error) {
	res, err := d.s.Call("Doc.GetField", d.handle,
		[]any{map[string]any{"qField": field}})
	if err != nil {
		return false, err
	}
	fh, err := ExtractHandle(res)
	if err != nil {
		return false, err
	}
	vals := make([]any, 0, len(values))
	for _, v := range values {
		vals = append(vals, map[string]any{"qText": v})
	}
	res, err = d.s.Call("Field.SelectValues", fh, []any{vals, false, false})
	if err != nil {
		return false, err
	}
	m, ok := res.(map[string]any)
	if !ok {
		return false, nil
	}
	applied, _ := m["qReturn"].(bool)
	return applied, nil
}

// Evaluate вычисляет скалярное выражение в контексте документа.
func (d *Doc) Evaluate(expr string) (any, error) {
	res, err := d.s.Call("Doc.Evaluate", d.handle,
		[]any{map[string]any{"qExpression": expr}})
	if err != nil {
		return nil, err
	}
	m, ok := res.(map[string]any)
	if !ok {
		return nil, nil
	}
	return m["qReturn"], nil
}
