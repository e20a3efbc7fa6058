package main

import (
	"image/color"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/config"
	"github.com/decker502/fxsim/pkg/systems"
	"github.com/decker502/fxsim/pkg/types"
	"github.com/decker502/fxsim/pkg/utils"
)

// 终端字符的高宽比约为 2:1，水平方向按两倍放大
const cellAspect = 2

// Cell 画布上的一个字符
type Cell struct {
	Rune  rune
	Color color.RGBA
	depth float64
}

// Canvas 字符网格，每格只保留最近的粒子
type Canvas struct {
	cols, rows int
	proj       utils.Projection
	cells      []Cell
}

// NewCanvas 创建能容纳效果视野的画布
// 最上一行留给标题
func NewCanvas(cols, rows int, effect types.EffectType) *Canvas {
	zMin, zMax := config.ViewLimits(effect)
	c := &Canvas{
		cols:  cols,
		rows:  rows,
		proj:  utils.FitProjection(max(cols/cellAspect, 1), max(rows-1, 1), config.ViewHalfWidth, zMin, zMax),
		cells: make([]Cell, cols*rows),
	}
	c.Clear()
	return c
}

// Clear 清空画布
func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = Cell{Rune: ' ', depth: math.Inf(1)}
	}
}

// At 返回 (x, y) 处的字符，越界时返回 false
func (c *Canvas) At(x, y int) (Cell, bool) {
	if x < 0 || x >= c.cols || y < 0 || y >= c.rows {
		return Cell{}, false
	}
	return c.cells[y*c.cols+x], true
}

// cellOf 把世界坐标映射到格子
func (c *Canvas) cellOf(p vmath.Vec3) (x, y int, depth float64) {
	sx, sy, depth := c.proj.Project(p)
	return int(math.Floor(sx * cellAspect)), int(math.Floor(sy)) + 1, depth
}

func (c *Canvas) plot(x, y int, r rune, clr color.RGBA, depth float64) {
	if x < 0 || x >= c.cols || y < 0 || y >= c.rows {
		return
	}
	cell := &c.cells[y*c.cols+x]
	if depth > cell.depth {
		return
	}
	*cell = Cell{Rune: r, Color: clr, depth: depth}
}

// DrawParticles 绘制粒子，亮度随 alpha 衰减
func (c *Canvas) DrawParticles(views []systems.ParticleView) {
	for _, v := range views {
		x, y, depth := c.cellOf(v.Position)
		a := vmath.Clamp(v.Alpha, 0, 1)
		clr := color.RGBA{
			R: uint8(float64(v.Color.R) * a),
			G: uint8(float64(v.Color.G) * a),
			B: uint8(float64(v.Color.B) * a),
			A: 255,
		}
		c.plot(x, y, glyphFor(a), clr, depth)
	}
}

// glyphFor 按透明度选择字符
func glyphFor(alpha float64) rune {
	switch {
	case alpha > 0.66:
		return '●'
	case alpha > 0.33:
		return '•'
	default:
		return '·'
	}
}

// DrawGround 绘制地面网格点
func (c *Canvas) DrawGround(level, halfWidth float64) {
	const steps = 16
	clr := color.RGBA{R: 70, G: 70, B: 70, A: 255}
	for i := 0; i <= steps; i++ {
		for j := 0; j <= steps; j++ {
			p := vmath.V3(
				-halfWidth+2*halfWidth*float64(i)/steps,
				-halfWidth+2*halfWidth*float64(j)/steps,
				level,
			)
			x, y, depth := c.cellOf(p)
			c.plot(x, y, '.', clr, depth)
		}
	}
}

// DrawEmitter 发射器画成红色叉号，始终在最前面
func (c *Canvas) DrawEmitter(pos vmath.Vec3) {
	x, y, _ := c.cellOf(pos)
	c.plot(x, y, 'x', color.RGBA{R: 255, A: 255}, math.Inf(-1))
}

// Blit 输出到终端
func (c *Canvas) Blit(s tcell.Screen) {
	for y := 0; y < c.rows; y++ {
		for x := 0; x < c.cols; x++ {
			cell := c.cells[y*c.cols+x]
			if cell.Rune == ' ' {
				continue
			}
			fg := tcell.NewRGBColor(int32(cell.Color.R), int32(cell.Color.G), int32(cell.Color.B))
			s.SetContent(x, y, cell.Rune, nil, tcell.StyleDefault.Foreground(fg))
		}
	}
}
