package qeclient

// Экстракторы вытаскивают известные под-формы из обобщённого result.
// Протокол живёт без схемы и двигается между версиями движка, поэтому
// всё чтение — через опциональные доступы: нет поля — нет элементов,
// а не паника или ошибка.

// Sheet — лист документа. Raw хранит узел как пришёл, id/title —
// удобные проекции.
type Sheet struct {
	ID    string
	Title string
	Raw   map[string]any
}

// ChildObject — визуальный объект внутри листа.
type ChildObject struct {
	ID   string
	Type string
	Raw  map[string]any
}

// Layout — материализованное описание объекта.
type Layout struct {
	ObjectID   string
	ObjectType string
	Raw        map[string]any
}

// Cell — ячейка гиперкуба: текст всегда, число — если движок его дал.
type Cell struct {
	Text string
	Num  *float64
}

// FormattedRow — строка таблицы в двух видах: только текст и
// «типизированный» (число вместо текста там, где оно есть).
type FormattedRow struct {
	Text   []string
	Values []any
}

// FormattedHypercube — таблица с заголовками из layout'а.
type FormattedHypercube struct {
	Headers []string
	Rows    []FormattedRow
}

// ExtractHandle читает qReturn.qHandle из результата открытия/получения
// объекта.
func ExtractHandle(result any) (int, error) {
	ret, ok := mapAt(result, "qReturn")
	if !ok {
		return 0, ErrNoHandle
	}
	h, ok := floatAt(ret, "qHandle")
	if !ok {
		return 0, ErrNoHandle
	}
	return int(h), nil
}

// ExtractSheets читает qList. Узлы возвращаются как есть — проекции
// id/title не теряют остального содержимого.
func ExtractSheets(result any) []Sheet {
	var sheets []Sheet
	for _, it := range listAt(result, "qList") {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		s := Sheet{Raw: m}
		if info, ok := mapAt(m, "qInfo"); ok {
			s.ID = stringAt(info, "qId")
		}
		if meta, ok := mapAt(m, "qMeta"); ok {
			s.Title = stringAt(meta, "qTitle")
		}
		sheets = append(sheets, s)
	}
	return sheets
}

// ExtractChildObjects читает qLayout.qChildList.qItems.
func ExtractChildObjects(result any) []ChildObject {
	var objs []ChildObject
	for _, it := range listAt(result, "qLayout", "qChildList", "qItems") {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		o := ChildObject{Raw: m}
		if info, ok := mapAt(m, "qInfo"); ok {
			o.ID = stringAt(info, "qId")
			o.Type = stringAt(info, "qType")
		}
		objs = append(objs, o)
	}
	return objs
}

// ExtractLayout читает узел qLayout.
func ExtractLayout(result any) (Layout, error) {
	node, ok := mapAt(result, "qLayout")
	if !ok {
		return Layout{}, ErrNoLayout
	}
	l := Layout{Raw: node}
	if info, ok := mapAt(node, "qInfo"); ok {
		l.ObjectID = stringAt(info, "qId")
		l.ObjectType = stringAt(info, "qType")
	}
	return l, nil
}

// ExtractHypercubeData склеивает qMatrix всех вернувшихся страниц,
// сохраняя порядок строк между страницами и ячеек внутри строки.
// Пустая страница даёт ноль строк.
func ExtractHypercubeData(result any) [][]Cell {
	var rows [][]Cell
	for _, pg := range listAt(result, "qDataPages") {
		for _, r := range listAt(pg, "qMatrix") {
			rawCells, ok := r.([]any)
			if !ok {
				continue
			}
			row := make([]Cell, 0, len(rawCells))
			for _, rc := range rawCells {
				cm, ok := rc.(map[string]any)
				if !ok {
					row = append(row, Cell{})
					continue
				}
				c := Cell{Text: stringAt(cm, "qText")}
				if n, ok := floatAt(cm, "qNum"); ok {
					c.Num = &n
				}
				row = append(row, c)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// FormatHypercubeData сшивает строки данных с заголовками из layout'а:
// сначала заголовки измерений, затем мер. В Values число подставляется
// вместо текста только в ячейках мер — измерения остаются текстом.
func FormatHypercubeData(rows [][]Cell, layout Layout) FormattedHypercube {
	var headers []string
	for _, d := range listAt(layout.Raw, "qHyperCube", "qDimensionInfo") {
		if m, ok := d.(map[string]any); ok {
			headers = append(headers, stringAt(m, "qFallbackTitle"))
		}
	}
	dims := len(headers)
	for _, ms := range listAt(layout.Raw, "qHyperCube", "qMeasureInfo") {
		if m, ok := ms.(map[string]any); ok {
			headers = append(headers, stringAt(m, "qFallbackTitle"))
		}
	}

	out := FormattedHypercube{Headers: headers}
	for _, row := range rows {
		fr := FormattedRow{
			Text:   make([]string, len(row)),
			Values: make([]any, len(row)),
		}
		for i, c := range row {
			fr.Text[i] = c.Text
			if i >= dims && c.Num != nil {
				fr.Values[i] = *c.Num
			} else {
				fr.Values[i] = c.Text
			}
		}
		out.Rows = append(out.Rows, fr)
	}
	return out
}

// ========================= опциональные доступы =========================

func mapAt(v any, keys ...string) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, k := range keys {
		m, ok = m[k].(map[string]any)
		if !ok {
			return nil, false
		}
	}
	return m, true
}

func listAt(v any, keys ...string) []any {
	if len(keys) > 1 {
		m, ok := mapAt(v, keys[:len(keys)-1]...)
		if !ok {
			return nil
		}
		v = m
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	l, _ := m[keys[len(keys)-1]].([]any)
	return l
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatAt(m map[string]any, key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}
