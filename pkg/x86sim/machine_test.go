package x86sim

import (
	"errors"
	"math"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/raymyers/munch/pkg/asm"
	"github.com/raymyers/munch/pkg/x86"
)

func program(code ...string) *asm.Program {
	return &asm.Program{Functions: []asm.Function{{Name: "f", Code: code}}}
}

func machine(code ...string) *Machine {
	m, err := New(program(code...))
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Machine", func() {
	Context("when loading", func() {
		It("should lay out initialized globals", func() {
			m, err := New(&asm.Program{Globals: []asm.GlobVar{
				{Name: "w", Words: []int32{7, -1}},
				{Name: "d", Doubles: []float64{2.5}},
				{Name: "z", Size: 12},
			}})
			Expect(err).NotTo(HaveOccurred())

			Expect(m.Global("w")).To(Equal(int32(7)))
			Expect(m.GlobalFloat("d")).To(Equal(2.5))
			Expect(m.Global("z")).To(Equal(int32(0)))
		})

		It("should reject a function defined twice", func() {
			_, err := New(&asm.Program{Functions: []asm.Function{{Name: "f"}, {Name: "f"}}})
			Expect(err).To(MatchError(ContainSubstring("defined twice")))
		})

		It("should allocate globals set from outside", func() {
			m := machine("ret")
			m.SetGlobal("fresh", 3)
			Expect(m.Global("fresh")).To(Equal(int32(3)))
			_, err := m.Global("missing")
			Expect(err).To(HaveOccurred())
		})
	})

	Context("when calling", func() {
		It("should run integer code and return in eax", func() {
			m := machine("movl $3, %eax", "addl $4, %eax", "ret")
			Expect(m.Call("f")).To(Succeed())
			Expect(m.Reg(x86.EAX)).To(Equal(int32(7)))
		})

		It("should pass arguments on the stack", func() {
			m := machine(
				"pushl %ebp", "pushl %ebx", "pushl %esi", "pushl %edi", "movl %esp, %ebp",
				"movl 20(%ebp), %eax", "subl 24(%ebp), %eax",
				"movl %ebp, %esp", "popl %edi", "popl %esi", "popl %ebx", "popl %ebp",
				"ret $8",
			)
			Expect(m.Call("f", 10, 4)).To(Succeed())
			Expect(m.Reg(x86.EAX)).To(Equal(int32(6)))
		})

		It("should report an unknown function", func() {
			Expect(machine("ret").Call("g")).To(MatchError(ContainSubstring("no function g")))
		})

		It("should detect an unbalanced stack", func() {
			err := machine("ret $4").Call("f")
			Expect(err).To(MatchError(ContainSubstring("stack pointer off by 4")))
		})

		It("should detect clobbered callee-saved registers", func() {
			err := machine("movl $1, %ebx", "ret").Call("f")
			Expect(err).To(MatchError(ContainSubstring("callee-saved")))
		})

		It("should stop runaway code", func() {
			m := machine("top:", "jmp top")
			m.MaxSteps = 100
			Expect(m.Call("f")).To(MatchError(ContainSubstring("step limit 100")))
		})

		It("should reject unknown instructions", func() {
			Expect(machine("bswap %eax", "ret").Call("f")).
				To(MatchError(ContainSubstring(`unknown instruction "bswap"`)))
		})

		It("should reject memory to memory moves", func() {
			m := machine("movl a, b", "ret")
			m.SetGlobal("a", 1)
			m.SetGlobal("b", 2)
			Expect(m.Call("f")).To(MatchError(ContainSubstring("memory to memory")))
		})

		It("should call program functions and local subroutines", func() {
			m, err := New(&asm.Program{Functions: []asm.Function{
				{Name: "five", Code: []string{"movl $5, %eax", "ret"}},
				{Name: "f", Code: []string{
					"call five",
					"call twice",
					"ret",
					"twice:",
					"addl %eax, %eax",
					"ret",
				}},
			}})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Call("f")).To(Succeed())
			Expect(m.Reg(x86.EAX)).To(Equal(int32(10)))
		})
	})

	Context("when calling natives", func() {
		var (
			mockCtrl *gomock.Controller
			callee   *MockCallee
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			callee = NewMockCallee(mockCtrl)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should pass arguments and pop what the callee pops", func() {
			m := machine("subl $4, %esp", "movl $5, (%esp)", "movl $1, %ecx", "call ext", "ret")
			m.Natives["ext"] = callee

			callee.EXPECT().Invoke(m).DoAndReturn(func(m *Machine) (int, error) {
				Expect(m.Arg(0)).To(Equal(int32(5)))
				Expect(m.Reg(x86.ECX)).To(Equal(Poison))
				m.SetReg(x86.EAX, 99)
				return 4, nil
			})

			Expect(m.Call("f")).To(Succeed())
			Expect(m.Reg(x86.EAX)).To(Equal(int32(99)))
			Expect(m.Reg(x86.EDX)).To(Equal(Poison))
		})

		It("should return floats on the fpu stack", func() {
			m := machine("subl $8, %esp", "fldl x", "fstpl (%esp)", "call sqrt", "ret")
			m.SetGlobalFloat("x", 16)
			m.Natives["sqrt"] = callee

			callee.EXPECT().Invoke(gomock.Any()).DoAndReturn(func(m *Machine) (int, error) {
				return 8, m.PushFloat(math.Sqrt(m.ArgFloat(0)))
			})

			Expect(m.Call("f")).To(Succeed())
			Expect(m.FPUDepth()).To(Equal(1))
			Expect(m.ST(0)).To(Equal(4.0))
		})

		It("should propagate callee errors", func() {
			m := machine("call ext", "ret")
			m.Natives["ext"] = callee
			callee.EXPECT().Invoke(gomock.Any()).Return(0, errors.New("boom"))

			Expect(m.Call("f")).To(MatchError(ContainSubstring("boom")))
		})

		It("should call natives through a register", func() {
			m := machine("movl $ext, %ecx", "call *%ecx", "ret")
			m.Natives["ext"] = callee
			callee.EXPECT().Invoke(gomock.Any()).Return(0, nil).Times(1)

			Expect(m.Call("f")).To(Succeed())
		})
	})
})
