package systems

import (
	"image/color"
	"log"
	"math"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/decker502/fxsim/internal/vmath"
	"github.com/decker502/fxsim/pkg/utils"
)

// 渲染常量
const (
	// dotTextureSize 圆点贴图边长（像素）
	dotTextureSize = 32

	// ParticleSizeScale 粒子尺寸到屏幕半径的缩放
	// Size 按"面积"解释（与散点图的 marker size 一致），半径 = sqrt(Size)/2 × 缩放
	ParticleSizeScale = 1.5

	// maxBatchVertices 单批最大顶点数（uint16 索引上限）
	maxBatchVertices = 65532
)

var (
	groundColor  = color.RGBA{R: 128, G: 128, B: 128, A: 60}
	emitterColor = color.RGBA{R: 255, A: 255}
)

// RenderSystem 把粒子快照绘制到屏幕
//
// 职责范围：
//   - 粒子：每个粒子是一个带颜色和透明度的圆点，按深度从远到近绘制
//   - 地面网格：当前效果的地面高度
//   - 发射器标记：红色叉号
//
// 不读写粒子系统内部状态，只消费 Snapshot 产生的 ParticleView。
//
// 性能优化：
//   - 所有粒子共享一张圆点贴图，一次 DrawTriangles 批量绘制
//   - 顶点、索引和排序数组复用，避免每帧分配
type RenderSystem struct {
	projection utils.Projection
	dot        *ebiten.Image

	particleVertices []ebiten.Vertex // 粒子顶点数组（复用）
	particleIndices  []uint16        // 粒子索引数组（复用）
	order            []int           // 绘制顺序（复用）
	depths           []float64
}

// NewRenderSystem 创建渲染系统
func NewRenderSystem(projection utils.Projection) *RenderSystem {
	return &RenderSystem{
		projection:       projection,
		particleVertices: make([]ebiten.Vertex, 0, 2000), // 预分配：500 个粒子 × 4 顶点
		particleIndices:  make([]uint16, 0, 3000),        // 预分配：500 个粒子 × 6 索引
	}
}

// SetProjection 更换投影（切换效果时调整视野）
func (s *RenderSystem) SetProjection(p utils.Projection) {
	s.projection = p
}

// Projection 返回当前投影
func (s *RenderSystem) Projection() utils.Projection {
	return s.projection
}

// ParticleRadius 返回粒子在屏幕上的半径（像素）
func ParticleRadius(size float64) float64 {
	return math.Sqrt(math.Max(size, 0)) / 2 * ParticleSizeScale
}

// dotTexture 延迟创建圆点贴图
func (s *RenderSystem) dotTexture() *ebiten.Image {
	if s.dot == nil {
		s.dot = ebiten.NewImage(dotTextureSize, dotTextureSize)
		r := float32(dotTextureSize) / 2
		vector.DrawFilledCircle(s.dot, r, r, r, color.White, true)
		log.Printf("[RenderSystem] Dot texture created (%dx%d)", dotTextureSize, dotTextureSize)
	}
	return s.dot
}

// DrawParticles 绘制粒子快照
//
// 渲染流程：
// 1. 投影所有粒子并按深度排序（远处先画）
// 2. 每个粒子生成 4 个顶点（2 个三角形组成矩形，贴圆点贴图）
// 3. 批量 DrawTriangles
func (s *RenderSystem) DrawParticles(screen *ebiten.Image, views []ParticleView) {
	if len(views) == 0 {
		return
	}

	dot := s.dotTexture()
	op := &ebiten.DrawTrianglesOptions{}
	op.AntiAlias = true

	s.particleVertices = s.particleVertices[:0]
	s.particleIndices = s.particleIndices[:0]

	for _, i := range s.sortByDepth(views) {
		if len(s.particleVertices)+4 > maxBatchVertices {
			screen.DrawTriangles(s.particleVertices, s.particleIndices, dot, op)
			s.particleVertices = s.particleVertices[:0]
			s.particleIndices = s.particleIndices[:0]
		}

		baseIndex := uint16(len(s.particleVertices))
		s.particleVertices = s.appendParticleVertices(s.particleVertices, views[i])
		s.particleIndices = append(s.particleIndices,
			baseIndex+0, baseIndex+1, baseIndex+2, // 第一个三角形
			baseIndex+1, baseIndex+3, baseIndex+2, // 第二个三角形
		)
	}

	if len(s.particleVertices) > 0 {
		screen.DrawTriangles(s.particleVertices, s.particleIndices, dot, op)
	}
}

// sortByDepth 返回按深度从远到近排列的下标
// 深度相同的粒子保持快照顺序
func (s *RenderSystem) sortByDepth(views []ParticleView) []int {
	s.order = s.order[:0]
	s.depths = s.depths[:0]
	for i, v := range views {
		_, _, depth := s.projection.Project(v.Position)
		s.order = append(s.order, i)
		s.depths = append(s.depths, depth)
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		return s.depths[s.order[a]] > s.depths[s.order[b]]
	})
	return s.order
}

// appendParticleVertices 追加一个粒子的 4 个顶点（左上、右上、左下、右下）
func (s *RenderSystem) appendParticleVertices(dst []ebiten.Vertex, v ParticleView) []ebiten.Vertex {
	x, y, _ := s.projection.Project(v.Position)
	r := ParticleRadius(v.Size)

	colorR := float32(v.Color.R) / 255
	colorG := float32(v.Color.G) / 255
	colorB := float32(v.Color.B) / 255
	colorA := float32(vmath.Clamp(v.Alpha, 0, 1)) * float32(v.Color.A) / 255

	const src = float32(dotTextureSize)
	corners := [4][4]float32{
		{float32(x - r), float32(y - r), 0, 0},     // 左上
		{float32(x + r), float32(y - r), src, 0},   // 右上
		{float32(x - r), float32(y + r), 0, src},   // 左下
		{float32(x + r), float32(y + r), src, src}, // 右下
	}
	for _, c := range corners {
		dst = append(dst, ebiten.Vertex{
			DstX:   c[0],
			DstY:   c[1],
			SrcX:   c[2],
			SrcY:   c[3],
			ColorR: colorR,
			ColorG: colorG,
			ColorB: colorB,
			ColorA: colorA,
		})
	}
	return dst
}

// DrawGround 在 z = level 处绘制 [-halfWidth, halfWidth]² 的网格
func (s *RenderSystem) DrawGround(screen *ebiten.Image, level, halfWidth float64) {
	const lines = 8
	step := 2 * halfWidth / lines
	for i := 0; i <= lines; i++ {
		c := -halfWidth + float64(i)*step
		s.strokeWorldLine(screen, vmath.V3(c, -halfWidth, level), vmath.V3(c, halfWidth, level), 1, groundColor)
		s.strokeWorldLine(screen, vmath.V3(-halfWidth, c, level), vmath.V3(halfWidth, c, level), 1, groundColor)
	}
}

// DrawEmitter 在发射器位置绘制红色叉号
func (s *RenderSystem) DrawEmitter(screen *ebiten.Image, pos vmath.Vec3) {
	x, y, _ := s.projection.Project(pos)
	const arm = 6
	fx, fy := float32(x), float32(y)
	vector.StrokeLine(screen, fx-arm, fy-arm, fx+arm, fy+arm, 3, emitterColor, true)
	vector.StrokeLine(screen, fx-arm, fy+arm, fx+arm, fy-arm, 3, emitterColor, true)
}

func (s *RenderSystem) strokeWorldLine(screen *ebiten.Image, a, b vmath.Vec3, width float32, clr color.Color) {
	ax, ay, _ := s.projection.Project(a)
	bx, by, _ := s.projection.Project(b)
	vector.StrokeLine(screen, float32(ax), float32(ay), float32(bx), float32(by), width, clr, true)
}
